package main

import (
	"fmt"

	"github.com/ByBren-LLC/bigroom/cmd/bigroom/internal"
	"github.com/ByBren-LLC/bigroom/internal/backlog"
)

// loadDocument reads a planning scenario from path.
func loadDocument(path string) (*backlog.Document, error) {
	doc, err := backlog.Load(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// loadScenario reads a document that must carry a full scenario:
// items, iterations, and teams.
func loadScenario(path string) (*backlog.Document, error) {
	doc, err := loadDocument(path)
	if err != nil {
		return nil, err
	}
	if len(doc.Items) == 0 {
		return nil, internal.NewCLIError(internal.ExitBacklogError,
			fmt.Sprintf("%s declares no work items", path))
	}
	if len(doc.Iterations) == 0 {
		return nil, internal.NewCLIError(internal.ExitBacklogError,
			fmt.Sprintf("%s declares no iterations; planning needs at least one", path))
	}
	if len(doc.Teams) == 0 {
		return nil, internal.NewCLIError(internal.ExitBacklogError,
			fmt.Sprintf("%s declares no teams; planning needs at least one", path))
	}
	return doc, nil
}
