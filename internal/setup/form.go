package setup

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/hay-kot/mentor/internal/core/chat"
	"github.com/hay-kot/mentor/internal/core/config"
	"github.com/hay-kot/mentor/internal/styles"
)

var providerLabels = map[string]string{
	config.ProviderGemini: "Gemini (Google AI or Vertex AI)",
	config.ProviderOpenAI: "OpenAI compatible",
	config.ProviderRemote: "Remote mentor server",
	config.ProviderCanned: "Canned replies (offline)",
}

var backendLabels = map[string]string{
	config.BackendJSONFile:  "JSON files",
	config.BackendSQLite:    "SQLite",
	config.BackendFirestore: "Cloud Firestore",
	config.BackendMemory:    "Memory (not saved)",
}

// RunForm asks for each answer, starting from a.
func RunForm(a Answers) (Answers, error) {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("User id *").
				Description("Conversations are stored under this id.").
				Value(&a.UserID).
				Validate(userValidator),
			huh.NewSelect[string]().
				Title("Reply provider").
				Options(options(Providers, providerLabels)...).
				Value(&a.Provider),
			huh.NewSelect[string]().
				Title("Storage").
				Options(options(Backends, backendLabels)...).
				Value(&a.Backend),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API key variable").
				Description("Environment variable holding the provider API key.").
				Value(&a.APIKeyEnv),
		).WithHideFunc(func() bool {
			return a.Provider != config.ProviderGemini && a.Provider != config.ProviderOpenAI
		}),
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL *").
				Placeholder("http://localhost:8080/api/gemini").
				Value(&a.Server).
				Validate(requiredValidator("Server URL")),
		).WithHideFunc(func() bool {
			return a.Provider != config.ProviderRemote
		}),
		huh.NewGroup(
			huh.NewInput().
				Title("Google Cloud project *").
				Value(&a.Project).
				Validate(requiredValidator("Project")),
		).WithHideFunc(func() bool {
			return a.Backend != config.BackendFirestore
		}),
	).WithTheme(styles.FormTheme())

	if err := form.Run(); err != nil {
		return Answers{}, err
	}

	return a, nil
}

func options(values []string, labels map[string]string) []huh.Option[string] {
	opts := make([]huh.Option[string], len(values))
	for i, v := range values {
		label := labels[v]
		if label == "" {
			label = v
		}
		opts[i] = huh.NewOption(label, v)
	}
	return opts
}

// requiredValidator returns a validator that checks for non-empty values.
func requiredValidator(label string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", label)
		}
		return nil
	}
}

func userValidator(s string) error {
	if err := requiredValidator("User id")(s); err != nil {
		return err
	}
	return chat.ValidateUserID(strings.TrimSpace(s))
}
