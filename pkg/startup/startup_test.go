package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

type journal struct {
	events []string
}

func (j *journal) dependency(name string, failures int, requires ...string) Dependency {
	return Dependency{
		Name:     name,
		Requires: requires,
		StartFunc: func(context.Context) error {
			if failures > 0 {
				failures--
				j.events = append(j.events, "fail "+name)
				return errors.New(name + " unavailable")
			}
			j.events = append(j.events, "start "+name)
			return nil
		},
		StopFunc: func(context.Context) error {
			j.events = append(j.events, "stop "+name)
			return nil
		},
	}
}

func newStartup(maxAttempts int) *Startup {
	s := NewStartup(testLogger, maxAttempts)
	s.backoffUnit = time.Millisecond
	return s
}

func TestStartup_DependencyOrder(t *testing.T) {
	j := &journal{}
	s := newStartup(1)
	s.AddDependency(j.dependency("http", 0, "postgres", "redis"))
	s.AddDependency(j.dependency("postgres", 0))
	s.AddDependency(j.dependency("redis", 0))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start postgres", "start redis", "start http"}, j.events)
	assert.Equal(t, StartupStatusStarted, s.Status("http"))

	j.events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop http", "stop redis", "stop postgres"}, j.events)
	assert.Equal(t, StartupStatusStopped, s.Status("postgres"))
}

func TestStartup_RetriesFailedDependency(t *testing.T) {
	j := &journal{}
	s := newStartup(3)
	s.AddDependency(j.dependency("postgres", 0))
	s.AddDependency(j.dependency("memgraph", 2))

	require.NoError(t, s.Start(context.Background()))
	// postgres is not restarted between attempts
	assert.Equal(t, []string{"start postgres", "fail memgraph", "fail memgraph", "start memgraph"}, j.events)
}

func TestStartup_GivesUp(t *testing.T) {
	j := &journal{}
	s := newStartup(2)
	s.AddDependency(j.dependency("kafka", 5))

	err := s.Start(context.Background())
	assert.ErrorContains(t, err, "startup failed after 2 attempts: kafka unavailable")
	assert.Equal(t, StartupStatusFailed, s.Status("kafka"))
}

func TestStartup_Validation(t *testing.T) {
	j := &journal{}

	s := newStartup(1)
	s.AddDependency(j.dependency("http", 0, "missing"))
	assert.ErrorContains(t, s.Start(context.Background()), "unknown dependency 'missing'")

	s = newStartup(1)
	s.AddDependency(j.dependency("a", 0, "b"))
	s.AddDependency(j.dependency("b", 0, "a"))
	assert.ErrorContains(t, s.Start(context.Background()), "dependency cycle")
}
