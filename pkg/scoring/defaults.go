package scoring

// DefaultFactors returns the repository-path factors built from w.
func DefaultFactors(w Weights) []Factor {
	return []Factor{
		&HealthFactor{Weights: w},
		&DeploymentFactor{Weights: w},
		&DocumentationFactor{Weights: w},
		&PackageFactor{Weights: w},
	}
}
