package provider

import (
	"strings"
	"testing"
)

// validConfigs holds one complete config per backend.
func validConfigs() map[Backend]Config {
	return map[Backend]Config{
		BackendOllama: {Backend: BackendOllama, Ollama: ProviderOllama{Host: "http://localhost:11434", Model: "llama3.2:3b"}},
		BackendOpenAI: {Backend: BackendOpenAI, OpenAI: ProviderOpenAI{APIKey: "sk-test", Model: "gpt-4o-mini"}},
		BackendAzure: {Backend: BackendAzure, AzureOpenAI: ProviderAzureOpenAI{
			APIKey: "key", Endpoint: "https://forums.openai.azure.com", Deployment: "gpt-4o", APIVersion: "2024-06-01",
		}},
		BackendBedrock: {Backend: BackendBedrock, Bedrock: ProviderBedrock{AWSRegion: "eu-west-1", ModelID: "anthropic.claude-3-haiku"}},
		BackendGemini:  {Backend: BackendGemini, Gemini: ProviderGemini{APIKey: "AIza-test", Model: "gemini-1.5-flash"}},
	}
}

func TestConfigValidate_Valid(t *testing.T) {
	t.Parallel()
	for backend, cfg := range validConfigs() {
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s: Validate() unexpected error: %v", backend, err)
		}
	}
}

func TestConfigValidate_Missing(t *testing.T) {
	t.Parallel()

	// Each case clears one setting of an otherwise valid config and expects
	// the error to name the environment variable that supplies it.
	tests := []struct {
		backend Backend
		clear   func(*Config)
		envVar  string
	}{
		{BackendOllama, func(c *Config) { c.Ollama.Model = "" }, "OLLAMA_MODEL"},
		{BackendOpenAI, func(c *Config) { c.OpenAI.APIKey = "" }, "OPENAI_API_KEY"},
		{BackendOpenAI, func(c *Config) { c.OpenAI.Model = "" }, "OPENAI_MODEL"},
		{BackendAzure, func(c *Config) { c.AzureOpenAI.APIKey = "" }, "AZURE_OPENAI_API_KEY"},
		{BackendAzure, func(c *Config) { c.AzureOpenAI.Endpoint = "" }, "AZURE_OPENAI_ENDPOINT"},
		{BackendAzure, func(c *Config) { c.AzureOpenAI.Deployment = "" }, "AZURE_OPENAI_DEPLOYMENT"},
		{BackendBedrock, func(c *Config) { c.Bedrock.ModelID = "" }, "BEDROCK_MODEL_ID"},
		{BackendBedrock, func(c *Config) { c.Bedrock.AWSRegion = "" }, "AWS_REGION"},
		{BackendGemini, func(c *Config) { c.Gemini.APIKey = "" }, "GOOGLE_API_KEY"},
		{BackendGemini, func(c *Config) { c.Gemini.Model = "" }, "GEMINI_MODEL"},
	}

	for _, tc := range tests {
		t.Run(string(tc.backend)+"/"+tc.envVar, func(t *testing.T) {
			t.Parallel()
			cfg := validConfigs()[tc.backend]
			tc.clear(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.envVar) {
				t.Errorf("Validate() = %v, want error naming %s", err, tc.envVar)
			}
		})
	}
}

func TestConfigValidate_UnknownBackend(t *testing.T) {
	t.Parallel()
	cfg := Config{Backend: "llamafile"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), `"llamafile"`) {
		t.Errorf("Validate() = %v, want unknown backend error", err)
	}
}

func TestConfig_Model(t *testing.T) {
	t.Parallel()
	want := map[Backend]string{
		BackendOllama:  "llama3.2:3b",
		BackendOpenAI:  "gpt-4o-mini",
		BackendAzure:   "gpt-4o",
		BackendBedrock: "anthropic.claude-3-haiku",
		BackendGemini:  "gemini-1.5-flash",
	}
	for backend, cfg := range validConfigs() {
		if got := cfg.Model(); got != want[backend] {
			t.Errorf("%s: Model() = %q, want %q", backend, got, want[backend])
		}
	}
	if got := (&Config{Backend: "none"}).Model(); got != "" {
		t.Errorf("unknown backend Model() = %q", got)
	}
}

func TestIsAzureReasoningModel(t *testing.T) {
	t.Parallel()

	reasoning := []string{"o1", "o1-mini", "o3-pro", "o4-mini", "O3-Mini", "codex-mini"}
	standard := []string{"gpt-4o", "gpt-4.1", "gpt-35-turbo", "gpt-5.2-codex", "forum-answers", ""}

	for _, d := range reasoning {
		if !isAzureReasoningModel(d) {
			t.Errorf("isAzureReasoningModel(%q) = false, want true", d)
		}
	}
	for _, d := range standard {
		if isAzureReasoningModel(d) {
			t.Errorf("isAzureReasoningModel(%q) = true, want false", d)
		}
	}
}
