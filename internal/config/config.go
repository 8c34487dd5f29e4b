package config

import (
	"fmt"
	"strconv"
	"strings"

	"threadcatch/internal/stackcap"
)

// DefaultThreadName is the thread name caught when none is given.
const DefaultThreadName = "HighResTimer"

// Config holds the parsed command-line configuration.
type Config struct {
	// Addr is the JDWP endpoint of the target VM, host:port.
	Addr string
	// ThreadName is the thread name to catch.
	ThreadName string
	// SkipFrames is the count of innermost frames skipped per capture.
	SkipFrames int
	// MaxFrames bounds the frames rendered per capture.
	MaxFrames int
	// CustomAttributes are expression-valued span attributes.
	CustomAttributes []CustomAttribute
	// EnableOTEL turns on span export for catches.
	EnableOTEL bool
}

// CustomAttribute holds a custom attribute definition: a name and an
// expr expression evaluated per catch.
type CustomAttribute struct {
	Name       string
	Expression string
}

// ParseArgs parses command-line arguments and returns a Config.
// Expected format: program_name [flags] -- <host:port>
func ParseArgs(args []string) (*Config, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no arguments provided")
	}

	programName := args[0]
	cfg := &Config{
		ThreadName: DefaultThreadName,
		SkipFrames: stackcap.DefaultSkipFrames,
		MaxFrames:  stackcap.DefaultMaxFrames,
	}

	// Find the "--" separator, collecting flags before it.
	targetStart := -1
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			targetStart = i + 1
			break
		}

		switch arg {
		case "-n", "--thread-name":
			value, err := flagValue(args, &i)
			if err != nil {
				return nil, err
			}
			cfg.ThreadName = value

		case "-s", "--skip-frames":
			value, err := flagValue(args, &i)
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%s must be a non-negative integer, got %q", arg, value)
			}
			cfg.SkipFrames = n

		case "-m", "--max-frames":
			value, err := flagValue(args, &i)
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%s must be a positive integer, got %q", arg, value)
			}
			cfg.MaxFrames = n

		case "-a", "--attr":
			value, err := flagValue(args, &i)
			if err != nil {
				return nil, err
			}
			attr, err := parseCustomAttribute(value)
			if err != nil {
				return nil, err
			}
			cfg.CustomAttributes = append(cfg.CustomAttributes, attr)

		case "--otel":
			cfg.EnableOTEL = true

		default:
			return nil, fmt.Errorf("unknown flag %q", arg)
		}
	}

	if targetStart == -1 || targetStart >= len(args) {
		return nil, fmt.Errorf("Usage: %s [flags] -- <host:port>\nExample: %s -n HighResTimer -- localhost:5005",
			programName, programName)
	}

	target := args[targetStart:]
	if len(target) != 1 {
		return nil, fmt.Errorf("expected exactly one <host:port> target, got %d arguments", len(target))
	}
	cfg.Addr = target[0]
	if !strings.Contains(cfg.Addr, ":") {
		return nil, fmt.Errorf("target %q is not host:port", cfg.Addr)
	}

	return cfg, nil
}

// flagValue returns the value following the flag at *i, advancing *i.
func flagValue(args []string, i *int) (string, error) {
	if *i+1 >= len(args) {
		return "", fmt.Errorf("%s requires a value", args[*i])
	}
	*i++
	return args[*i], nil
}

// parseCustomAttribute parses one name=expression pair.
func parseCustomAttribute(value string) (CustomAttribute, error) {
	kv := strings.SplitN(value, "=", 2)
	if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
		return CustomAttribute{}, fmt.Errorf("custom attribute must be name=expression, got %q", value)
	}
	return CustomAttribute{Name: kv[0], Expression: kv[1]}, nil
}
