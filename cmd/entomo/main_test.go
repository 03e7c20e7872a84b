package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"entomo/internal/cascade"
	"entomo/internal/config"
	"entomo/internal/services/vlm"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type cliEnv struct {
	dir        string
	configPath string
	imagePath  string
	calls      *atomic.Int32
}

// newCLIEnv writes a config whose vision-language model is an httptest server
// answering with reply.
func newCLIEnv(t *testing.T, reply string, history bool) cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, key := range []string{"ENTOMO_VLM_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY", "ENTOMO_API_TOKEN"} {
		t.Setenv(key, "")
	}

	calls := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": reply}}},
		})
	}))
	t.Cleanup(server.Close)

	writeFile(t, filepath.Join(dir, "knowledge.json"), `{
  "1": {"label": "antlion", "visual_knowledge": "Long slender abdomen."},
  "2": {"label": "mantis", "visual_knowledge": "Raptorial forelegs."},
  "3": {"label": "aphid"}
}`)
	writeFile(t, filepath.Join(dir, "index.json"), `{"antlion": 1, "mantis": 2, "aphid": 3}`)
	writeFile(t, filepath.Join(dir, "preds.json"), `[
  {"label": "antlion", "confidence": 60},
  {"label": "mantis", "confidence": 55},
  {"label": "aphid", "confidence": 10}
]`)
	writeFile(t, filepath.Join(dir, "confident.json"), `[
  {"label": "antlion", "confidence": 85},
  {"label": "mantis", "confidence": 40}
]`)
	imagePath := filepath.Join(dir, "bug.png")
	if err := os.WriteFile(imagePath, pngHeader, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	configPath := filepath.Join(dir, "config.toml")
	writeFile(t, configPath, fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
knowledge_file = %q
class_index_file = %q
history_db = %q

[cascade]
threshold = 70.0
top_k = 2

[vlm]
provider = "openai"
base_url = %q
model = "test-vlm"

[history]
enabled = %t

[logging]
level = "error"
`,
		filepath.Join(dir, "data"),
		filepath.Join(dir, "logs"),
		filepath.Join(dir, "knowledge.json"),
		filepath.Join(dir, "index.json"),
		filepath.Join(dir, "data", "history.db"),
		server.URL,
		history,
	))

	return cliEnv{dir: dir, configPath: configPath, imagePath: imagePath, calls: calls}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	fullArgs := append([]string{}, args...)
	if configPath != "" {
		fullArgs = append([]string{"--config", configPath}, fullArgs...)
	}
	cmd.SetArgs(fullArgs)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q\noutput: %s", substr, output)
	}
}

func TestClassifyEscalatesUncertainResult(t *testing.T) {
	env := newCLIEnv(t, "I believe this is a mantis", false)

	out, _, err := runCLI(t, []string{"classify", "--image", env.imagePath, "--predictions", filepath.Join(env.dir, "preds.json")}, env.configPath)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	requireContains(t, out, "Primary classifier")
	requireContains(t, out, "antlion")
	requireContains(t, out, "Secondary model used: yes")
	requireContains(t, out, "Candidates: antlion, mantis")
	requireContains(t, out, "Final: mantis")
	if got := env.calls.Load(); got != 1 {
		t.Fatalf("expected one model call, got %d", got)
	}
}

func TestClassifySkipsConfidentResult(t *testing.T) {
	env := newCLIEnv(t, "mantis", false)

	out, _, err := runCLI(t, []string{"classify", "-i", env.imagePath, "-p", filepath.Join(env.dir, "confident.json"), "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	var result cascade.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v\n%s", err, out)
	}
	if result.UsedSecondaryModel || result.FinalIdentifier != "antlion" {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := env.calls.Load(); got != 0 {
		t.Fatalf("model should not be called, got %d calls", got)
	}
}

func TestClassifyThresholdFlagOverridesConfig(t *testing.T) {
	env := newCLIEnv(t, "mantis", false)

	out, _, err := runCLI(t, []string{"classify", "-i", env.imagePath, "-p", filepath.Join(env.dir, "preds.json"), "--threshold", "50", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	var result cascade.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.UsedSecondaryModel || result.Threshold != 50 || result.FinalIdentifier != "antlion" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestClassifyUnmatchedAnswerFallsBack(t *testing.T) {
	env := newCLIEnv(t, "unknown insect", false)

	out, _, err := runCLI(t, []string{"classify", "-i", env.imagePath, "-p", filepath.Join(env.dir, "preds.json")}, env.configPath)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	requireContains(t, out, "Secondary output: unknown insect")
	requireContains(t, out, "Final: antlion")
}

func TestClassifyRequiresImage(t *testing.T) {
	env := newCLIEnv(t, "mantis", false)

	_, _, err := runCLI(t, []string{"classify", "-p", filepath.Join(env.dir, "preds.json")}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "image") {
		t.Fatalf("expected missing image error, got %v", err)
	}
}

func TestClassifyRejectsThresholdOutOfRange(t *testing.T) {
	env := newCLIEnv(t, "mantis", false)

	for _, value := range []string{"150", "-1", "NaN"} {
		_, _, err := runCLI(t, []string{"classify", "-i", env.imagePath, "-p", filepath.Join(env.dir, "preds.json"), "--threshold", value}, env.configPath)
		if err == nil || !strings.Contains(err.Error(), "between 0 and 100") {
			t.Fatalf("expected range error for %s, got %v", value, err)
		}
	}
}

func TestClassifyWithoutPredictionSource(t *testing.T) {
	env := newCLIEnv(t, "mantis", false)

	_, _, err := runCLI(t, []string{"classify", "-i", env.imagePath}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no predictions") {
		t.Fatalf("expected no predictions error, got %v", err)
	}
}

func TestHistoryListsRecordedClassifications(t *testing.T) {
	env := newCLIEnv(t, "I believe this is a mantis", true)

	if _, _, err := runCLI(t, []string{"classify", "-i", env.imagePath, "-p", filepath.Join(env.dir, "preds.json")}, env.configPath); err != nil {
		t.Fatalf("classify: %v", err)
	}
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "bug.png")
	requireContains(t, out, "mantis")
}

func TestHistoryEmpty(t *testing.T) {
	env := newCLIEnv(t, "mantis", true)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No classifications recorded")
}

func TestPromptPrintsCandidatesInOrder(t *testing.T) {
	env := newCLIEnv(t, "mantis", false)

	out, _, err := runCLI(t, []string{"prompt", "-p", filepath.Join(env.dir, "preds.json")}, env.configPath)
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	requireContains(t, out, "1. antlion\nKnowledge: Long slender abdomen.")
	requireContains(t, out, "2. mantis\nKnowledge: Raptorial forelegs.")
	if strings.Contains(out, "aphid") {
		t.Fatalf("top_k=2 should exclude aphid:\n%s", out)
	}
	if env.calls.Load() != 0 {
		t.Fatal("prompt must not call the model")
	}
}

func TestPromptTopKFlag(t *testing.T) {
	env := newCLIEnv(t, "mantis", false)

	out, _, err := runCLI(t, []string{"prompt", "-p", filepath.Join(env.dir, "preds.json"), "-k", "3"}, env.configPath)
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	requireContains(t, out, "3. aphid\nKnowledge: No specific visual knowledge available for this candidate.")
}

func TestConfigInitWritesSample(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	target := filepath.Join(dir, "entomo.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	env := newCLIEnv(t, "mantis", false)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateRejectsBadThreshold(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[cascade]\nthreshold = 120.0\n")

	_, _, err := runCLI(t, []string{"config", "validate"}, path)
	if err == nil || !strings.Contains(err.Error(), "cascade.threshold") {
		t.Fatalf("expected threshold error, got %v", err)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	env := newCLIEnv(t, "mantis", false)
	t.Setenv("ENTOMO_VLM_API_KEY", "sk-secret")

	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "sk-secret") {
		t.Fatalf("api key leaked:\n%s", out)
	}
	requireContains(t, out, "********")
	requireContains(t, out, "test-vlm")
}

func TestConfigValidateWarnsOnMissingKnowledge(t *testing.T) {
	env := newCLIEnv(t, "mantis", false)
	if err := os.Remove(filepath.Join(env.dir, "knowledge.json")); err != nil {
		t.Fatalf("remove knowledge: %v", err)
	}

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Knowledge file")
	requireContains(t, out, "warn")
	requireContains(t, out, "Configuration valid")
}

func TestServeLockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	first, err := acquireServeLock(dir)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := acquireServeLock(dir); err == nil {
		t.Fatal("expected second lock to fail")
	}
	if err := first.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	again, err := acquireServeLock(dir)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	_ = again.Unlock()
}

func TestPredictorAppliesClassifierTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	defer server.Close()

	cfg := &config.Config{Classifier: config.Classifier{Endpoint: server.URL, TimeoutSeconds: 1}}
	source, err := predictor(cfg, "")
	if err != nil {
		t.Fatalf("predictor: %v", err)
	}
	start := time.Now()
	if _, err := source.Predict(context.Background(), vlm.NewImage("bug.png", "", pngHeader)); err == nil {
		t.Fatal("expected timeout from slow classifier")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("classifier timeout ignored, took %s", elapsed)
	}
}
