package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/QuantPilot/internal/conversation"
	"github.com/dyike/QuantPilot/internal/models"
)

// PromptForCredentials asks for a username and password. Values passed in
// are used as-is and not prompted for.
func PromptForCredentials(username, password string) (models.Credentials, error) {
	creds := models.Credentials{Username: username, Password: password}
	if creds.Username == "" {
		prompt := &survey.Input{Message: "Username:"}
		if err := survey.AskOne(prompt, &creds.Username, survey.WithValidator(survey.Required)); err != nil {
			return creds, err
		}
	}
	if creds.Password == "" {
		prompt := &survey.Password{Message: "Password:"}
		if err := survey.AskOne(prompt, &creds.Password, survey.WithValidator(survey.Required)); err != nil {
			return creds, err
		}
	}
	creds.Username = strings.TrimSpace(creds.Username)
	return creds, nil
}

// PromptForCategory lets the user pick the category of a new conversation.
func PromptForCategory() (models.Category, error) {
	options := make([]string, 0, len(models.Categories()))
	byLabel := make(map[string]models.Category)
	var general string
	for _, c := range models.Categories() {
		style := conversation.Style(c)
		label := fmt.Sprintf("%s %s", style.Icon, style.Label)
		options = append(options, label)
		byLabel[label] = c
		if c == models.CategoryGeneral {
			general = label
		}
	}

	var selected string
	prompt := &survey.Select{
		Message: "Conversation type:",
		Options: options,
		Default: general,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return byLabel[selected], nil
}

// PromptForConfirmation asks a yes/no question, defaulting to no.
func PromptForConfirmation(message string) (bool, error) {
	var confirmed bool
	prompt := &survey.Confirm{Message: message, Default: false}
	err := survey.AskOne(prompt, &confirmed)
	return confirmed, err
}

// PromptForSettings walks through the staged assistant settings and returns
// the values the user entered.
func PromptForSettings(current models.AISettings) (models.AISettings, error) {
	answers := struct {
		Model       string
		Temperature string
		Risk        string
	}{}

	qs := []*survey.Question{
		{
			Name:     "model",
			Prompt:   &survey.Input{Message: "Model:", Default: current.Model},
			Validate: survey.Required,
		},
		{
			Name:   "temperature",
			Prompt: &survey.Input{Message: "Temperature (0-1):", Default: strconv.FormatFloat(current.Temperature, 'f', -1, 64)},
			Validate: func(val interface{}) error {
				t, err := strconv.ParseFloat(strings.TrimSpace(val.(string)), 64)
				if err != nil || t < 0 || t > 1 {
					return fmt.Errorf("temperature must be a number between 0 and 1")
				}
				return nil
			},
		},
		{
			Name: "risk",
			Prompt: &survey.Select{
				Message: "Risk tolerance:",
				Options: []string{string(models.RiskLow), string(models.RiskMedium), string(models.RiskHigh)},
				Default: string(current.RiskTolerance),
			},
		},
	}
	if err := survey.Ask(qs, &answers); err != nil {
		return current, err
	}

	temp, _ := strconv.ParseFloat(strings.TrimSpace(answers.Temperature), 64)
	return models.AISettings{
		Model:         strings.TrimSpace(answers.Model),
		Temperature:   temp,
		RiskTolerance: models.RiskTolerance(answers.Risk),
	}, nil
}
