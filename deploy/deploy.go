// Package deploy sequences artifact packaging, role provisioning and
// function creation for a single descriptor.
package deploy

import (
	"context"
	"errors"

	"github.com/a-pavithraa/lambda-publish/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Deployer struct {
	Builder   ArtifactBuilder
	Roles     RoleProvisioner
	Functions FunctionPublisher
	// OnTransition, when set, sees every stage the run enters.
	OnTransition func(Stage)
}

// Deploy runs Building -> RoleReady -> Published -> Done and returns the
// function ARN. The first failing stage ends the run; nothing already
// created is rolled back.
func (d *Deployer) Deploy(ctx context.Context, params common.DeployParams) (string, error) {
	runID := uuid.NewString()
	logger := log.With().
		Str("run_id", runID).
		Str("function", params.FunctionName).
		Logger()
	ctx = logger.WithContext(ctx)

	d.enter(Building)
	logger.Info().Str("source", params.SourceFile).Msg("Building deployment package")
	art, err := d.Builder.Build(params.SourceFile)
	if err != nil {
		return "", d.fail(ctx, Building, err)
	}
	if err := ctx.Err(); err != nil {
		return "", d.fail(ctx, Building, err)
	}

	logger.Info().Str("role", params.RoleName).Msg("Ensuring execution role")
	role, err := d.Roles.EnsureRole(ctx, params.RoleName)
	if err != nil {
		return "", d.fail(ctx, RoleReady, err)
	}
	if role == nil {
		return "", d.fail(ctx, RoleReady, errors.New("no role reference returned"))
	}
	d.enter(RoleReady)
	if err := ctx.Err(); err != nil {
		return "", d.fail(ctx, RoleReady, err)
	}

	logger.Info().Str("role_arn", role.Arn).Bool("publish", params.Publish).Msg("Creating function")
	functionArn, err := d.Functions.Publish(ctx, *role, art, params)
	if err != nil {
		return "", d.fail(ctx, Published, err)
	}
	d.enter(Published)

	d.enter(Done)
	logger.Info().Str("arn", functionArn).Msg("Function created successfully")
	return functionArn, nil
}

func (d *Deployer) enter(s Stage) {
	if d.OnTransition != nil {
		d.OnTransition(s)
	}
}

func (d *Deployer) fail(ctx context.Context, stage Stage, err error) error {
	log.Ctx(ctx).Error().Err(err).Stringer("stage", stage).Msg("Deployment failed")
	d.enter(Failed)
	return &Error{Stage: stage, Err: err}
}
