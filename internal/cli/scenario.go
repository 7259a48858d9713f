package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xdung24/restload/internal/config"
	"github.com/xdung24/restload/internal/scenario"
)

// targetFlags override the API under test for built-in scenarios and fill
// the placeholders of scenario files.
type targetFlags struct {
	file    string
	baseURL string
	userID  int
	token   string
}

func (f *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Scenario file (YAML or JSON) instead of a built-in scenario")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Base URL of the API (default "+scenario.DefaultBaseURL+")")
	cmd.Flags().IntVar(&f.userID, "user-id", 0, fmt.Sprintf("Id of the user resource (default %d)", scenario.DefaultUserID))
	cmd.Flags().StringVar(&f.token, "token", "", "Bearer token sent by authenticated requests")
}

func (f *targetFlags) target() scenario.Target {
	return scenario.Target{BaseURL: f.baseURL, UserID: f.userID, Token: f.token}
}

// load resolves the scenario named in args, or the --file scenario. Settings
// are only set for scenario files.
func (f *targetFlags) load(args []string) (*scenario.Scenario, config.Settings, error) {
	if f.userID < 0 {
		return nil, config.Settings{}, fmt.Errorf("--user-id cannot be negative")
	}

	switch {
	case f.file != "" && len(args) > 0:
		return nil, config.Settings{}, fmt.Errorf("give either a scenario name or --file, not both")
	case f.file != "":
		file, err := config.LoadFile(f.file)
		if err != nil {
			return nil, config.Settings{}, err
		}
		sc, err := file.ToScenario(f.target())
		if err != nil {
			return nil, config.Settings{}, fmt.Errorf("%s: %w", f.file, err)
		}
		return sc, file.Settings, nil
	case len(args) == 1:
		sc, err := scenario.New(args[0], f.target())
		if err != nil {
			return nil, config.Settings{}, err
		}
		return sc, config.Settings{}, nil
	}
	return nil, config.Settings{}, fmt.Errorf("a scenario name or --file is required (see 'restload list')")
}
