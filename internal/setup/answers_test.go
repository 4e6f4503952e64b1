package setup

import (
	"reflect"
	"strings"
	"testing"

	"github.com/hay-kot/mentor/internal/core/config"
)

func TestParseSetValues(t *testing.T) {
	tests := []struct {
		name    string
		sets    []string
		want    map[string]string
		wantErr string
	}{
		{
			name: "single value",
			sets: []string{"provider=openai"},
			want: map[string]string{"provider": "openai"},
		},
		{
			name: "multiple values",
			sets: []string{"provider=openai", "user_id=ana"},
			want: map[string]string{"provider": "openai", "user_id": "ana"},
		},
		{
			name: "value with equals sign",
			sets: []string{"server=http://x/?a=b"},
			want: map[string]string{"server": "http://x/?a=b"},
		},
		{
			name: "trims whitespace",
			sets: []string{" backend = sqlite "},
			want: map[string]string{"backend": "sqlite"},
		},
		{
			name:    "missing equals",
			sets:    []string{"provider"},
			wantErr: "invalid --set format",
		},
		{
			name:    "empty name",
			sets:    []string{"=value"},
			wantErr: "empty name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSetValues(tt.sets)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ParseSetValues() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSetValues() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSetValues() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnswers_Apply(t *testing.T) {
	var a Answers
	err := a.Apply(map[string]string{
		KeyUserID:    "ana",
		KeyProvider:  config.ProviderOpenAI,
		KeyBackend:   config.BackendSQLite,
		KeyAPIKeyEnv: "MY_KEY",
	})
	if err != nil {
		t.Fatalf("Apply() unexpected error: %v", err)
	}

	want := Answers{UserID: "ana", Provider: config.ProviderOpenAI, Backend: config.BackendSQLite, APIKeyEnv: "MY_KEY"}
	if a != want {
		t.Errorf("Apply() = %+v, want %+v", a, want)
	}

	if err := a.Apply(map[string]string{"color": "blue"}); err == nil {
		t.Error("Apply() expected error for unknown key")
	}
}

func TestAnswers_Validate(t *testing.T) {
	valid := Answers{UserID: "ana", Provider: config.ProviderCanned, Backend: config.BackendJSONFile}

	tests := []struct {
		name    string
		mutate  func(*Answers)
		wantErr string
	}{
		{name: "valid", mutate: func(*Answers) {}},
		{name: "blank user", mutate: func(a *Answers) { a.UserID = "  " }, wantErr: "user_id"},
		{name: "user with slash", mutate: func(a *Answers) { a.UserID = "team/ana" }, wantErr: "user_id"},
		{name: "unknown provider", mutate: func(a *Answers) { a.Provider = "llama" }, wantErr: "provider"},
		{name: "unknown backend", mutate: func(a *Answers) { a.Backend = "redis" }, wantErr: "backend"},
		{name: "firestore without project", mutate: func(a *Answers) { a.Backend = config.BackendFirestore }, wantErr: "project"},
		{
			name: "firestore with project",
			mutate: func(a *Answers) {
				a.Backend = config.BackendFirestore
				a.Project = "p"
			},
		},
		{
			name: "remote without server",
			mutate: func(a *Answers) {
				a.Provider = config.ProviderRemote
				a.Server = ""
			},
			wantErr: "server",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid
			tt.mutate(&a)

			err := a.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestAnswers_ApplyTo(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	a := Defaults(&cfg)
	if a.Provider != config.ProviderGemini || a.APIKeyEnv != "GEMINI_API_KEY" {
		t.Fatalf("Defaults() = %+v", a)
	}

	a.UserID = " ana "
	a.Provider = config.ProviderOpenAI
	a.APIKeyEnv = "OPENAI_TOKEN"
	a.Backend = config.BackendFirestore
	a.Project = "mentor-prod"
	a.ApplyTo(&cfg)

	if cfg.UserID != "ana" {
		t.Errorf("UserID = %q, want %q", cfg.UserID, "ana")
	}
	if cfg.Gateway.Provider != config.ProviderOpenAI {
		t.Errorf("Provider = %q", cfg.Gateway.Provider)
	}
	if cfg.Gateway.OpenAI.APIKeyEnv != "OPENAI_TOKEN" {
		t.Errorf("OpenAI.APIKeyEnv = %q", cfg.Gateway.OpenAI.APIKeyEnv)
	}
	if cfg.Storage.Backend != config.BackendFirestore || cfg.Storage.Firestore.ProjectID != "mentor-prod" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after ApplyTo: %v", err)
	}
}
