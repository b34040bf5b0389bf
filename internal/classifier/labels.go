package classifier

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/tkoivula/photonest/internal/errors"
)

// defaultLabels is the label set baked into the bundled scene model, used
// when no label file is configured.
var defaultLabels = []string{
	"beach",
	"coastline",
	"mountain",
	"mountain peak",
	"forest",
	"woodland",
	"city street",
	"skyline",
	"urban area",
	"lake",
	"lakeshore",
	"park",
	"garden",
	"indoor",
	"living room",
	"restaurant",
	"museum",
	"desert",
	"river",
	"waterfall",
	"snowfield",
	"harbor",
	"bridge",
	"field",
	"sunset",
	"people",
	"animal",
	"food",
	"vehicle",
	"building",
}

// loadLabels reads one label per line from the configured label file, or
// returns the built-in label set when no path is given.
func loadLabels(labelPath string) ([]string, error) {
	if labelPath == "" {
		labels := make([]string, len(defaultLabels))
		copy(labels, defaultLabels)
		return labels, nil
	}

	file, err := os.Open(labelPath)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			FileContext(labelPath, 0).
			Build()
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			FileContext(labelPath, 0).
			Build()
	}
	if len(labels) == 0 {
		return nil, errors.New(fmt.Errorf("label file %s is empty", labelPath)).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			Build()
	}
	return labels, nil
}
