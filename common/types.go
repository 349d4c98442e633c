package common

// DeployParams is the fully resolved description of one function deployment.
// It is built once by the config loader and handed to the deployer by value.
type DeployParams struct {
	FunctionName string
	Description  string
	HandlerName  string
	Memory       int
	Timeout      int
	Publish      bool
	RoleName     string
	Runtime      string
	Tags         map[string]string
	Region       string
	SourceFile   string
	Environment  string
}

// CopyTags returns a copy of the tag map so callers can hand it to the SDK
// without sharing the descriptor's map.
func (p DeployParams) CopyTags() map[string]string {
	if len(p.Tags) == 0 {
		return nil
	}
	tags := make(map[string]string, len(p.Tags))
	for k, v := range p.Tags {
		tags[k] = v
	}
	return tags
}
