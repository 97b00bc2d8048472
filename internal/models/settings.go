package models

import (
	"errors"
	"fmt"
)

type RiskTolerance string

const (
	RiskLow    RiskTolerance = "low"
	RiskMedium RiskTolerance = "medium"
	RiskHigh   RiskTolerance = "high"
)

func (r RiskTolerance) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// AISettings controls how the assistant answers.
type AISettings struct {
	Model         string        `json:"model"`
	Temperature   float64       `json:"temperature"`
	RiskTolerance RiskTolerance `json:"risk_tolerance"`
}

func DefaultAISettings() AISettings {
	return AISettings{
		Model:         "deepseek-chat",
		Temperature:   0.7,
		RiskTolerance: RiskMedium,
	}
}

func (s AISettings) Validate() error {
	if s.Model == "" {
		return errors.New("model is required")
	}
	if s.Temperature < 0 || s.Temperature > 1 {
		return fmt.Errorf("temperature %.2f out of range [0,1]", s.Temperature)
	}
	if !s.RiskTolerance.Valid() {
		return fmt.Errorf("invalid risk tolerance %q", s.RiskTolerance)
	}
	return nil
}
