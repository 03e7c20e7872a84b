// Package classifier obtains primary classifier scores for an image.
//
// Inference itself happens elsewhere: FileSource reads predictions computed
// ahead of time and HTTPClient posts the image to an inference server. Both
// speak the same JSON shapes, either an array of {"label", "confidence"}
// objects in classifier order or an object mapping label to confidence.
// Confidences are percentages.
package classifier
