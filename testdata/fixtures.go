// Package testdata provides recorded exercise attempts for end-to-end tests.
package testdata

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ayusman/strokerehab/internal/pose"
)

//go:embed attempts/*.json
var attemptsFS embed.FS

// Attempt is a recorded exercise attempt.
type Attempt struct {
	Username     string       `json:"username"`
	Exercise     string       `json:"exercise"`
	LandmarkData []pose.Frame `json:"landmark_data"`
}

// LoadAttempt loads a recorded attempt by name, without the .json suffix.
// Files holding a bare frame array load with an empty username and exercise.
func LoadAttempt(name string) (*Attempt, error) {
	data, err := attemptsFS.ReadFile("attempts/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("load attempt %s: %w", name, err)
	}

	a := &Attempt{}
	if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		err = json.Unmarshal(data, &a.LandmarkData)
	} else {
		err = json.Unmarshal(data, a)
	}
	if err != nil {
		return nil, fmt.Errorf("decode attempt %s: %w", name, err)
	}
	return a, nil
}

// Names lists the recorded attempts.
func Names() ([]string, error) {
	entries, err := attemptsFS.ReadDir("attempts")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return names, nil
}
