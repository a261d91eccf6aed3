package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends the registry to a Pushgateway; batch commands exit before a
// scrape could see them
func (m *Metrics) Push(url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).Push(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
