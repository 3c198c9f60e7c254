package conflict

import (
	"fmt"

	"github.com/BalansCollective/weavemesh-git/internal/models"
)

// GenerateResolutions returns accept-ours and accept-theirs for every
// conflict, plus a manual merge once severity reaches Major.
func GenerateResolutions(c *models.Conflict) []models.Resolution {
	resolutions := []models.Resolution{
		checkoutResolution(c, models.ResolutionAcceptOurs, "ours", "Accept our version of the file"),
		checkoutResolution(c, models.ResolutionAcceptTheirs, "theirs", "Accept their version of the file"),
	}
	if c.Severity >= models.SeverityMajor {
		resolutions = append(resolutions, manualMerge(c))
	}
	return resolutions
}

func checkoutResolution(c *models.Conflict, kind models.ResolutionType, side, desc string) models.Resolution {
	return models.Resolution{
		ID:          models.NewID(),
		Type:        kind,
		Description: desc,
		Confidence:  0.7,
		Steps: []models.ResolutionStep{{
			ID:          models.NewID(),
			Description: fmt.Sprintf("Check out %s version of %s", side, c.FilePath),
			Type:        models.StepGitCommand,
			Parameters: map[string]string{
				"command": "checkout --" + side,
				"file":    c.FilePath,
			},
			Order: 1,
		}},
		EstimatedEffort:   models.EffortMinimal,
		RiskLevel:         models.RiskLow,
		RequiredExpertise: []string{"git"},
	}
}

func manualMerge(c *models.Conflict) models.Resolution {
	return models.Resolution{
		ID:          models.NewID(),
		Type:        models.ResolutionManualMerge,
		Description: "Merge both versions by hand",
		Confidence:  0.9,
		Steps: []models.ResolutionStep{
			{
				ID:          models.NewID(),
				Description: "Review both sides of the conflict",
				Type:        models.StepCodeReview,
				Parameters:  map[string]string{"file": c.FilePath},
				Order:       1,
			},
			{
				ID:          models.NewID(),
				Description: "Edit the file to combine the changes",
				Type:        models.StepFileEdit,
				Parameters:  map[string]string{"file": c.FilePath},
				Order:       2,
			},
			{
				ID:          models.NewID(),
				Description: "Run tests against the merged result",
				Type:        models.StepTestExecution,
				Parameters:  map[string]string{},
				Order:       3,
				Optional:    true,
			},
		},
		EstimatedEffort:   models.EffortMedium,
		RiskLevel:         models.RiskMedium,
		RequiredExpertise: []string{"domain_knowledge", "code_review"},
	}
}
