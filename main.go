package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/a-pavithraa/lambda-publish/artifact"
	"github.com/a-pavithraa/lambda-publish/common"
	"github.com/a-pavithraa/lambda-publish/config"
	"github.com/a-pavithraa/lambda-publish/deploy"
	"github.com/a-pavithraa/lambda-publish/iam"
	"github.com/a-pavithraa/lambda-publish/lambda"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Not able to run the command")
	}
}

func newApp() *cli.App {
	descriptorFlags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path of a yaml function descriptor (repeatable)",
		},
		&cli.StringFlag{
			Name:  "config_dir",
			Value: ".",
			Usage: "Directory scanned for descriptors when --name is used",
		},
		&cli.StringSliceFlag{
			Name:    "name",
			Aliases: []string{"n"},
			Usage:   "Descriptor file name prefix to look up in --config_dir (repeatable)",
		},
		&cli.StringFlag{
			Name:    "env",
			Aliases: []string{"e"},
			EnvVars: []string{"LAMBDA_ENV"},
			Usage:   "Sub-directory of the lambdas directory, overrides the descriptor's environment",
		},
	}

	deployFlags := append([]cli.Flag{
		&cli.StringFlag{
			Name:    "lambdas_dir",
			Value:   artifact.DefaultBaseDir,
			EnvVars: []string{"LAMBDAS_DIR"},
			Usage:   "Directory holding handler sources",
		},
		&cli.IntFlag{
			Name:  "role_wait_attempts",
			Value: iam.DefaultWaitOptions.MaxAttempts,
			Usage: "Maximum polls for a newly created role",
		},
		&cli.DurationFlag{
			Name:  "role_wait_timeout",
			Value: iam.DefaultWaitOptions.Timeout,
			Usage: "Maximum time to wait for a newly created role",
		},
		&cli.BoolFlag{
			Name:  "wait_active",
			Value: true,
			Usage: "Wait for the created function to become Active",
		},
		&cli.DurationFlag{
			Name:  "active_timeout",
			Value: lambda.DefaultActiveTimeout,
			Usage: "Maximum time to wait for the function to become Active",
		},
		&cli.IntFlag{
			Name:  "concurrency",
			Value: 2,
			Usage: "Number of descriptors deployed at once",
		},
	}, descriptorFlags...)

	return &cli.App{
		Name:  "lambda-publish",
		Usage: "Packages a handler file, provisions its role and creates the Lambda function",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log_level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
				Usage:   "debug, info, warn or error",
			},
		},
		Before: func(cCtx *cli.Context) error {
			configureLogging(cCtx.String("log_level"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:    "deploy",
				Aliases: []string{"d"},
				Usage:   "Creates the role (if needed) and the Lambda function",
				Flags:   deployFlags,
				Action:  DeployLambda,
			},
			{
				Name:    "validate",
				Aliases: []string{"v"},
				Usage:   "Loads and validates descriptors without calling AWS",
				Flags:   descriptorFlags,
				Action:  ValidateDescriptors,
			},
		},
	}
}

func configureLogging(level string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)
	zerolog.DefaultContextLogger = &log.Logger

	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

// LoadDescriptors resolves --config paths and --name prefixes into deploy
// parameters.
func LoadDescriptors(cCtx *cli.Context) ([]common.DeployParams, error) {
	paths := append([]string{}, cCtx.StringSlice("config")...)
	for _, prefix := range cCtx.StringSlice("name") {
		path, err := config.Discover(cCtx.String("config_dir"), prefix)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return nil, &common.InputError{Message: "either --config or --name must be given"}
	}

	env := cCtx.String("env")
	all := make([]common.DeployParams, 0, len(paths))
	for _, path := range paths {
		params, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		if !common.TrimAndCheckEmptyString(&env) {
			params.Environment = env
		}
		all = append(all, *params)
	}
	return all, nil
}

func ValidateDescriptors(cCtx *cli.Context) error {
	all, err := LoadDescriptors(cCtx)
	if err != nil {
		return err
	}
	for _, params := range all {
		log.Info().
			Str("function", params.FunctionName).
			Str("role", params.RoleName).
			Str("runtime", params.Runtime).
			Str("handler", params.HandlerName).
			Str("region", params.Region).
			Str("source", params.SourceFile).
			Msg("Descriptor is valid")
	}
	return nil
}

func DeployLambda(cCtx *cli.Context) error {
	all, err := LoadDescriptors(cCtx)
	if err != nil {
		return err
	}

	factory := newDeployerFactory(cCtx)
	outcomes := deploy.RunAll(cCtx.Context, all, cCtx.Int("concurrency"), factory)

	var errs []error
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			log.Error().Str("function", outcome.FunctionName).Err(outcome.Err).Msg("Deployment failed")
			errs = append(errs, outcome.Err)
			continue
		}
		fmt.Fprintf(cCtx.App.Writer, "%s\t%s\n", outcome.FunctionName, outcome.FunctionArn)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d deployments failed: %w", len(errs), len(outcomes), errors.Join(errs...))
	}
	return nil
}

func newDeployerFactory(cCtx *cli.Context) deploy.Factory {
	lambdasDir := cCtx.String("lambdas_dir")
	roleWait := iam.DefaultWaitOptions
	roleWait.MaxAttempts = cCtx.Int("role_wait_attempts")
	roleWait.Timeout = cCtx.Duration("role_wait_timeout")
	waitActive := cCtx.Bool("wait_active")
	activeTimeout := cCtx.Duration("active_timeout")

	return func(ctx context.Context, params common.DeployParams) (*deploy.Deployer, error) {
		cfg, err := common.LoadAWSConfig(ctx, params.Region)
		if err != nil {
			return nil, err
		}
		if cfg.Region == "" {
			return nil, errors.New("no AWS region configured")
		}
		return &deploy.Deployer{
			Builder: artifact.Builder{BaseDir: lambdasDir, Environment: params.Environment},
			Roles: iam.ServiceWrapper{
				Client: iam.Client(cfg),
				Wait:   roleWait,
			},
			Functions: lambda.ServiceWrapper{
				Client:        lambda.Client(cfg),
				WaitActive:    waitActive,
				ActiveTimeout: activeTimeout,
			},
		}, nil
	}
}
