// Package config reads function descriptors into deploy parameters.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/a-pavithraa/lambda-publish/common"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMemory  = 128
	DefaultTimeout = 3
)

var (
	handlerPattern = regexp.MustCompile(`^[^.\s]+(\.[^.\s]+)+$`)
	regionPattern  = regexp.MustCompile(`^[a-z]{2}(-gov|-iso[a-z]*)?-[a-z]+-\d+$`)
)

// Descriptor is the YAML form of a function deployment.
type Descriptor struct {
	FunctionName string            `yaml:"functionName"`
	Description  string            `yaml:"description"`
	Handler      string            `yaml:"handler"`
	MemorySize   int               `yaml:"memorySize"`
	Timeout      int               `yaml:"timeout"`
	Publish      *bool             `yaml:"publish"`
	RoleName     string            `yaml:"roleName"`
	Runtime      string            `yaml:"runtime"`
	Tags         map[string]string `yaml:"tags"`
	Region       string            `yaml:"region"`
	SourceFile   string            `yaml:"sourceFile"`
	Environment  string            `yaml:"environment"`
}

func Load(path string) (*common.DeployParams, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var d Descriptor
	if err := yaml.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("error parsing YAML %s: %w", path, err)
	}

	params := d.Resolve()
	if err := Validate(params); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &params, nil
}

// Resolve applies defaults and trims whitespace.
func (d Descriptor) Resolve() common.DeployParams {
	params := common.DeployParams{
		FunctionName: strings.TrimSpace(d.FunctionName),
		Description:  strings.TrimSpace(d.Description),
		HandlerName:  strings.TrimSpace(d.Handler),
		Memory:       d.MemorySize,
		Timeout:      d.Timeout,
		Publish:      true,
		RoleName:     strings.TrimSpace(d.RoleName),
		Runtime:      strings.TrimSpace(d.Runtime),
		Region:       strings.TrimSpace(d.Region),
		SourceFile:   strings.TrimSpace(d.SourceFile),
		Environment:  strings.TrimSpace(d.Environment),
	}
	if params.Memory == 0 {
		params.Memory = DefaultMemory
	}
	if params.Timeout == 0 {
		params.Timeout = DefaultTimeout
	}
	if d.Publish != nil {
		params.Publish = *d.Publish
	}
	if len(d.Tags) > 0 {
		params.Tags = make(map[string]string, len(d.Tags))
		for k, v := range d.Tags {
			params.Tags[k] = v
		}
	}
	return params
}

// Validate collects every problem with params into one InputError.
func Validate(params common.DeployParams) error {
	var errorMessage strings.Builder
	if common.TrimAndCheckEmptyString(&params.FunctionName) {
		errorMessage.WriteString("functionName is required.\n")
	}
	if common.TrimAndCheckEmptyString(&params.RoleName) {
		errorMessage.WriteString("roleName is required.\n")
	}
	if common.TrimAndCheckEmptyString(&params.SourceFile) {
		errorMessage.WriteString("sourceFile is required.\n")
	}
	if !handlerPattern.MatchString(params.HandlerName) {
		errorMessage.WriteString(fmt.Sprintf("handler %q must look like <module>.<entrypoint>.\n", params.HandlerName))
	}
	if !isSupportedRuntime(params.Runtime) {
		errorMessage.WriteString(fmt.Sprintf("runtime %q is not a supported Lambda runtime.\n", params.Runtime))
	}
	if !regionPattern.MatchString(params.Region) {
		errorMessage.WriteString(fmt.Sprintf("region %q is not a valid region code.\n", params.Region))
	}
	if params.Memory < 128 || params.Memory > 10240 {
		errorMessage.WriteString("memorySize must be between 128 and 10240.\n")
	}
	if params.Timeout < 1 || params.Timeout > 900 {
		errorMessage.WriteString("timeout must be between 1 and 900 seconds.\n")
	}

	if errorMessage.Len() > 0 {
		return &common.InputError{Message: errorMessage.String()}
	}
	return nil
}

func isSupportedRuntime(runtime string) bool {
	for _, r := range types.Runtime("").Values() {
		if string(r) == runtime {
			return true
		}
	}
	return false
}

// Discover returns the first descriptor in dir, in name order, whose file
// name starts with prefix and has a YAML extension.
func Discover(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("error reading config directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if strings.HasPrefix(name, prefix) && (ext == ".yaml" || ext == ".yml") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no descriptor starting with %q in %s", prefix, dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}
