package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/chazu/lamina/pkg/model"
)

// evalResult passes an evaluation's outcome back from its goroutine.
type evalResult struct {
	model  *model.Model
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, or fails once timeout has
// elapsed. A result whose generation is no longer current is discarded.
//
// On timeout the goroutine may still be running; the generation check
// ensures its result is dropped when it eventually completes.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
	timeout time.Duration,
) (*model.Model, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return nil, nil, fmt.Errorf("evaluation superseded by newer request")
		}
		return res.model, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("evaluation timed out after %s", timeout)
	}
}
