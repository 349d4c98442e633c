package deploy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/a-pavithraa/lambda-publish/artifact"
	"github.com/a-pavithraa/lambda-publish/common"
	"github.com/a-pavithraa/lambda-publish/iam"
	"github.com/a-pavithraa/lambda-publish/lambda"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoParams() common.DeployParams {
	return common.DeployParams{
		FunctionName: "demo-fn",
		RoleName:     "demo-role",
		SourceFile:   "demo.py",
		HandlerName:  "demo.handler",
		Runtime:      "runtime-X",
		Publish:      true,
		Region:       "us-east-1",
	}
}

type harness struct {
	iam      *fakeIAM
	lambda   *fakeLambda
	deployer *Deployer
	stages   []Stage
}

func newHarness(t *testing.T, writeSource bool) *harness {
	t.Helper()
	base := t.TempDir()
	if writeSource {
		require.NoError(t, os.WriteFile(filepath.Join(base, "demo.py"), []byte("def handler(event, context):\n    return 1\n"), 0o600))
	}

	h := &harness{iam: newFakeIAM(), lambda: newFakeLambda()}
	h.deployer = &Deployer{
		Builder: artifact.Builder{BaseDir: base},
		Roles: iam.ServiceWrapper{
			Client: h.iam,
			Wait:   iam.WaitOptions{MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: time.Millisecond, Timeout: time.Second},
		},
		Functions: lambda.ServiceWrapper{
			Client:        h.lambda,
			WaitActive:    true,
			ActiveTimeout: time.Second,
			ActiveDelay:   time.Millisecond,
		},
		OnTransition: func(s Stage) { h.stages = append(h.stages, s) },
	}
	return h
}

func TestDeployFreshRole(t *testing.T) {
	h := newHarness(t, true)

	arn, err := h.deployer.Deploy(context.Background(), demoParams())
	require.NoError(t, err)

	assert.Equal(t, "arn:aws:lambda:us-east-1:123456789012:function:demo-fn", arn)
	assert.Contains(t, h.iam.roles, "demo-role")
	assert.Equal(t, 1, h.iam.attached["demo-role"])
	assert.Equal(t, 1, h.lambda.createCalls)
	assert.Equal(t, []Stage{Building, RoleReady, Published, Done}, h.stages)
}

func TestDeployExistingRole(t *testing.T) {
	h := newHarness(t, true)
	h.iam.roles["demo-role"] = "arn:aws:iam::123456789012:role/demo-role"

	arn, err := h.deployer.Deploy(context.Background(), demoParams())
	require.NoError(t, err)

	assert.NotEmpty(t, arn)
	assert.Equal(t, 1, h.iam.createCalls)
	assert.Zero(t, h.iam.attached["demo-role"])
	assert.Equal(t, 1, h.lambda.createCalls)
}

func TestDeployMissingSource(t *testing.T) {
	h := newHarness(t, false)

	arn, err := h.deployer.Deploy(context.Background(), demoParams())
	assert.Empty(t, arn)

	var deployErr *Error
	require.True(t, errors.As(err, &deployErr))
	assert.Equal(t, Building, deployErr.Stage)
	var artifactErr *common.ArtifactError
	assert.True(t, errors.As(err, &artifactErr))

	assert.Zero(t, h.iam.createCalls)
	assert.Zero(t, h.lambda.createCalls)
	assert.Equal(t, []Stage{Building, Failed}, h.stages)
}

func TestDeployExistingFunction(t *testing.T) {
	h := newHarness(t, true)
	h.lambda.functions["demo-fn"] = "arn:aws:lambda:us-east-1:123456789012:function:demo-fn"

	_, err := h.deployer.Deploy(context.Background(), demoParams())

	var deployErr *Error
	require.True(t, errors.As(err, &deployErr))
	assert.Equal(t, Published, deployErr.Stage)
	var publishErr *common.PublishError
	assert.True(t, errors.As(err, &publishErr))

	// the role created earlier in the run stays
	assert.Contains(t, h.iam.roles, "demo-role")
	assert.Equal(t, 1, h.iam.attached["demo-role"])
	assert.Equal(t, []Stage{Building, RoleReady, Failed}, h.stages)
}

func TestDeployRedeployReusesRoleAndFails(t *testing.T) {
	h := newHarness(t, true)

	_, err := h.deployer.Deploy(context.Background(), demoParams())
	require.NoError(t, err)

	_, err = h.deployer.Deploy(context.Background(), demoParams())
	var publishErr *common.PublishError
	require.True(t, errors.As(err, &publishErr))
	assert.Equal(t, 1, h.iam.attached["demo-role"])
}

type countingBuilder struct {
	calls int
	err   error
}

func (b *countingBuilder) Build(sourceFile string) (*artifact.Artifact, error) {
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	return &artifact.Artifact{Name: sourceFile, Bytes: []byte("zip")}, nil
}

type countingRoles struct {
	calls int
	err   error
}

func (r *countingRoles) EnsureRole(ctx context.Context, roleName string) (*iam.RoleRef, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &iam.RoleRef{Name: roleName, Arn: "arn:aws:iam::123456789012:role/" + roleName}, nil
}

type countingPublisher struct {
	calls int
}

func (p *countingPublisher) Publish(ctx context.Context, role iam.RoleRef, art *artifact.Artifact, params common.DeployParams) (string, error) {
	p.calls++
	return "arn:aws:lambda:us-east-1:123456789012:function:" + params.FunctionName, nil
}

func TestDeployStopsAtFirstFailure(t *testing.T) {
	t.Run("builder", func(t *testing.T) {
		builder := &countingBuilder{err: &common.ArtifactError{Path: "demo.py", Err: os.ErrNotExist}}
		roles := &countingRoles{}
		publisher := &countingPublisher{}
		d := &Deployer{Builder: builder, Roles: roles, Functions: publisher}

		_, err := d.Deploy(context.Background(), demoParams())
		assert.Error(t, err)
		assert.Equal(t, 1, builder.calls)
		assert.Zero(t, roles.calls)
		assert.Zero(t, publisher.calls)
	})

	t.Run("roles", func(t *testing.T) {
		builder := &countingBuilder{}
		roles := &countingRoles{err: &common.RoleProvisioningError{RoleName: "demo-role", Op: "create", Err: errors.New("AccessDenied")}}
		publisher := &countingPublisher{}
		d := &Deployer{Builder: builder, Roles: roles, Functions: publisher}

		_, err := d.Deploy(context.Background(), demoParams())
		var deployErr *Error
		require.True(t, errors.As(err, &deployErr))
		assert.Equal(t, RoleReady, deployErr.Stage)
		var roleErr *common.RoleProvisioningError
		assert.True(t, errors.As(err, &roleErr))
		assert.Equal(t, 1, roles.calls)
		assert.Zero(t, publisher.calls)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		roles := &countingRoles{}
		d := &Deployer{Builder: &countingBuilder{}, Roles: roles, Functions: &countingPublisher{}}

		_, err := d.Deploy(ctx, demoParams())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, roles.calls)
	})
}

func TestDeployConcurrentSameRole(t *testing.T) {
	fakeIAM := newFakeIAM()
	fakeLambda := newFakeLambda()
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "demo.py"), []byte("x = 1\n"), 0o600))

	newDeployer := func() *Deployer {
		return &Deployer{
			Builder:   artifact.Builder{BaseDir: base},
			Roles:     iam.ServiceWrapper{Client: fakeIAM, Wait: iam.WaitOptions{MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: time.Millisecond, Timeout: time.Second}},
			Functions: lambda.ServiceWrapper{Client: fakeLambda},
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, name := range []string{"demo-fn-a", "demo-fn-b"} {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			params := demoParams()
			params.FunctionName = name
			_, errs[i] = newDeployer().Deploy(context.Background(), params)
		}(i, name)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, 1, fakeIAM.attached["demo-role"])
	assert.Len(t, fakeLambda.functions, 2)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "RoleReady", RoleReady.String())
	assert.Equal(t, "Failed", Failed.String())
	assert.Equal(t, "Stage(9)", Stage(9).String())
}
