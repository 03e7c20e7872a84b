// Package vlm adapts vision-language model backends to the cascade.
//
// A Model receives a text prompt plus one image and returns free text. Two
// backends are provided: an OpenAI-compatible chat completions client (works
// with OpenRouter, vLLM, Ollama and llama.cpp servers) and a Gemini client
// built on google.golang.org/genai. Lazy wraps either so the backend is
// constructed once per process on first use.
package vlm
