// Command entomo classifies insect images with a two-stage cascade: a fast
// primary classifier whose uncertain answers are escalated to a
// vision-language model.
//
//	entomo classify --image bug.jpg --predictions preds.json
//	entomo prompt --predictions preds.json
//	entomo serve
//	entomo history
//	entomo config init|validate|show
package main
