package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xdung24/restload/internal/config"
	"github.com/xdung24/restload/internal/scenario"
)

// parseStages parses "30s:10,1m:20,20s:0" into ramp stages.
func parseStages(stagesStr string) ([]scenario.RampStage, error) {
	var stages []scenario.RampStage

	for i, part := range strings.Split(stagesStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		colonIdx := strings.LastIndex(part, ":")
		if colonIdx == -1 {
			return nil, fmt.Errorf("stage %d: expected 'duration:target' format, got '%s'", i+1, part)
		}

		durationStr := part[:colonIdx]
		targetStr := strings.TrimSpace(part[colonIdx+1:])

		d, err := config.ParseDurationString(durationStr)
		if err != nil {
			return nil, fmt.Errorf("stage %d: invalid duration '%s': %w", i+1, durationStr, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("stage %d: duration cannot be negative", i+1)
		}

		target, err := strconv.Atoi(targetStr)
		if err != nil {
			return nil, fmt.Errorf("stage %d: invalid target '%s': %w", i+1, targetStr, err)
		}
		if target < 0 {
			return nil, fmt.Errorf("stage %d: target cannot be negative", i+1)
		}

		stages = append(stages, scenario.RampStage{Duration: d, Target: target})
	}

	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}

	return stages, nil
}
