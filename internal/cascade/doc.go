// Package cascade arbitrates between a fast primary classifier and a slower
// vision-language model.
//
// The flow for one image is:
//
//	ConfidenceMap -> Decide -> (top > τ: done) -> SelectTopK -> BuildPrompt
//	  -> secondary Generate -> Reconcile -> Result
//
// Everything except Orchestrator.Classify and Session is pure. The
// orchestrator holds no mutable state and may serve concurrent requests;
// Session adds the per-user threshold and supersedes an in-flight request when
// a new one starts.
package cascade
