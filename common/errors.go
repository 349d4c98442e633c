package common

import "fmt"

// ArtifactError reports a source file that could not be packaged.
type ArtifactError struct {
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("building artifact from %s: %v", e.Path, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }

// RoleProvisioningError reports a failed role operation. Op names the IAM
// call or step that failed (create, wait, attach, get).
type RoleProvisioningError struct {
	RoleName string
	Op       string
	Err      error
}

func (e *RoleProvisioningError) Error() string {
	return fmt.Sprintf("provisioning role %s (%s): %v", e.RoleName, e.Op, e.Err)
}

func (e *RoleProvisioningError) Unwrap() error { return e.Err }

// PublishError reports a failed function creation or verification.
type PublishError struct {
	FunctionName string
	Err          error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publishing function %s: %v", e.FunctionName, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
