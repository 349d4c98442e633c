package deploy

import (
	"context"
	"fmt"

	"github.com/a-pavithraa/lambda-publish/artifact"
	"github.com/a-pavithraa/lambda-publish/common"
	"github.com/a-pavithraa/lambda-publish/iam"
)

type Stage int

const (
	Building Stage = iota
	RoleReady
	Published
	Done
	Failed
)

func (s Stage) String() string {
	switch s {
	case Building:
		return "Building"
	case RoleReady:
		return "RoleReady"
	case Published:
		return "Published"
	case Done:
		return "Done"
	case Failed:
		return "Failed"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

type ArtifactBuilder interface {
	Build(sourceFile string) (*artifact.Artifact, error)
}

type RoleProvisioner interface {
	EnsureRole(ctx context.Context, roleName string) (*iam.RoleRef, error)
}

type FunctionPublisher interface {
	Publish(ctx context.Context, role iam.RoleRef, art *artifact.Artifact, params common.DeployParams) (string, error)
}

// Error is returned by Deploy. Stage is the step that was being attempted.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("deployment failed at %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
