package deploy

import (
	"context"

	"github.com/a-pavithraa/lambda-publish/common"
	"golang.org/x/sync/errgroup"
)

// Factory builds the deployer for one descriptor, typically with clients
// bound to that descriptor's region.
type Factory func(ctx context.Context, params common.DeployParams) (*Deployer, error)

// Outcome is the result of one deployment started by RunAll.
type Outcome struct {
	FunctionName string
	FunctionArn  string
	Err          error
}

// RunAll deploys every descriptor, at most limit at a time. Each deployment
// runs independently; one failure never cancels the others. Outcomes are
// returned in input order.
func RunAll(ctx context.Context, all []common.DeployParams, limit int, factory Factory) []Outcome {
	outcomes := make([]Outcome, len(all))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i := range all {
		i, params := i, all[i]
		g.Go(func() error {
			outcomes[i].FunctionName = params.FunctionName
			deployer, err := factory(ctx, params)
			if err != nil {
				outcomes[i].Err = err
				return nil
			}
			outcomes[i].FunctionArn, outcomes[i].Err = deployer.Deploy(ctx, params)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}
