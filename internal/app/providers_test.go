package app_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/dictanote/internal/app"
	"github.com/MrWong99/dictanote/internal/config"
	"github.com/MrWong99/dictanote/pkg/provider/llm"
	llmmock "github.com/MrWong99/dictanote/pkg/provider/llm/mock"
	"github.com/MrWong99/dictanote/pkg/provider/stt"
	sttmock "github.com/MrWong99/dictanote/pkg/provider/stt/mock"
)

func testRegistry() *config.Registry {
	reg := config.NewRegistry()
	for _, name := range []string{"deepgram", "deepgram-eu"} {
		reg.RegisterSTT(name, func(config.ProviderEntry) (stt.Provider, error) { return &sttmock.Provider{}, nil })
	}
	for _, name := range []string{"openai", "gemini"} {
		reg.RegisterLLM(name, func(config.ProviderEntry) (llm.Provider, error) { return &llmmock.Provider{}, nil })
	}
	reg.RegisterLLM("broken", func(config.ProviderEntry) (llm.Provider, error) { return nil, errors.New("bad api key") })
	return reg
}

func TestBuildProviders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		providers config.ProvidersConfig
		wantSTT   []string
		wantLLM   []string
		wantErr   bool
	}{
		{
			name: "nothing configured",
		},
		{
			name: "primaries with fallbacks",
			providers: config.ProvidersConfig{
				STT:          config.ProviderEntry{Name: "deepgram"},
				STTFallbacks: []config.ProviderEntry{{Name: "deepgram-eu"}},
				LLM:          config.ProviderEntry{Name: "openai"},
				LLMFallbacks: []config.ProviderEntry{{Name: "gemini"}},
			},
			wantSTT: []string{"deepgram", "deepgram-eu"},
			wantLLM: []string{"openai", "gemini"},
		},
		{
			name: "unregistered names are skipped",
			providers: config.ProvidersConfig{
				STT:          config.ProviderEntry{Name: "whisper"},
				LLM:          config.ProviderEntry{Name: "openai"},
				LLMFallbacks: []config.ProviderEntry{{Name: "claude"}},
			},
			wantLLM: []string{"openai"},
		},
		{
			name: "factory error",
			providers: config.ProvidersConfig{
				LLM: config.ProviderEntry{Name: "broken"},
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			cfg.Providers = tt.providers

			ps, err := app.BuildProviders(cfg, testRegistry())
			if (err != nil) != tt.wantErr {
				t.Fatalf("BuildProviders() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}

			var gotSTT, gotLLM []string
			if ps.STT != nil {
				for _, e := range ps.STT.Status() {
					gotSTT = append(gotSTT, e.Name)
				}
			}
			if ps.LLM != nil {
				for _, e := range ps.LLM.Status() {
					gotLLM = append(gotLLM, e.Name)
				}
			}
			if !slices.Equal(gotSTT, tt.wantSTT) {
				t.Errorf("stt chain = %v, want %v", gotSTT, tt.wantSTT)
			}
			if !slices.Equal(gotLLM, tt.wantLLM) {
				t.Errorf("llm chain = %v, want %v", gotLLM, tt.wantLLM)
			}
			if len(tt.wantLLM) > 0 && ps.LLMName != tt.wantLLM[0] {
				t.Errorf("LLMName = %q, want %q", ps.LLMName, tt.wantLLM[0])
			}
		})
	}
}
