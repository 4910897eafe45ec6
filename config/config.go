// Package config defines the bridge configuration and how it is read from disk.
package config

import (
	"fmt"
	"net"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/rtdebridge/components/arm/universalrobots"
	"go.viam.com/rtdebridge/control"
	"go.viam.com/rtdebridge/logging"
	"go.viam.com/rtdebridge/realtime"
	"go.viam.com/rtdebridge/safety"
)

// OperationMode selects which motion API of the bridge is live.
type OperationMode string

// The known operation modes. Only Cartesian is functional; Joint is reserved.
const (
	OperationModeCartesian = OperationMode("cartesian")
	OperationModeJoint     = OperationMode("joint")
	OperationModeNone      = OperationMode("none")
)

// Defaults applied to unset fields.
const (
	DefaultFrequency          = 500.0
	DefaultLinearVelocity     = 0.25
	DefaultLinearAcceleration = 1.2
	DefaultServoLookahead     = 0.1
	DefaultServoGain          = 300.0
)

// Ranges accepted by the controller's servo command.
const (
	MinServoLookahead = 0.03
	MaxServoLookahead = 0.2
	MinServoGain      = 100.0
	MaxServoGain      = 2000.0
)

// Config is the bridge configuration. It is read once and not modified afterwards.
type Config struct {
	Host string `json:"host"`
	Port int    `json:"port,omitempty"`

	Frequency         float64 `json:"frequency_hz,omitempty"`
	ControlPriority   int     `json:"rt_control_priority,omitempty"`
	ReceivePriority   int     `json:"rt_receive_priority,omitempty"`
	InterfacePriority int     `json:"interface_priority,omitempty"`

	LinearVelocity     float64 `json:"linear_vel,omitempty"`
	LinearAcceleration float64 `json:"linear_acc,omitempty"`
	ServoLookaheadTime float64 `json:"servo_lookahead_time,omitempty"`
	ServoGain          float64 `json:"servo_gain,omitempty"`

	OperationMode            OperationMode `json:"operation_mode,omitempty"`
	SafeZone                 *safety.Zone  `json:"safe_zone"`
	AllowCommandsOutsideZone bool          `json:"allow_commands_outside_zone,omitempty"`

	Log logging.Config `json:"log,omitempty"`

	ConfigFilePath string `json:"-"`
}

// ApplyDefaults fills every unset tunable with its default.
func (cfg *Config) ApplyDefaults() {
	if cfg.Port == 0 {
		cfg.Port = universalrobots.RealtimePort
	}
	if cfg.Frequency == 0 {
		cfg.Frequency = DefaultFrequency
	}
	if cfg.LinearVelocity == 0 {
		cfg.LinearVelocity = DefaultLinearVelocity
	}
	if cfg.LinearAcceleration == 0 {
		cfg.LinearAcceleration = DefaultLinearAcceleration
	}
	if cfg.ServoLookaheadTime == 0 {
		cfg.ServoLookaheadTime = DefaultServoLookahead
	}
	if cfg.ServoGain == 0 {
		cfg.ServoGain = DefaultServoGain
	}
	if cfg.OperationMode == "" {
		cfg.OperationMode = OperationModeCartesian
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Host == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "host")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return utils.NewConfigValidationError(fieldPath(path, "port"),
			errors.Errorf("must be in [1, 65535], got %d", cfg.Port))
	}
	if err := control.ValidateFrequency(cfg.Frequency); err != nil {
		return utils.NewConfigValidationError(fieldPath(path, "frequency_hz"), err)
	}
	for name, prio := range map[string]int{
		"rt_control_priority": cfg.ControlPriority,
		"rt_receive_priority": cfg.ReceivePriority,
		"interface_priority":  cfg.InterfacePriority,
	} {
		if err := realtime.ValidatePriority(prio); err != nil {
			return utils.NewConfigValidationError(fieldPath(path, name), err)
		}
	}
	if cfg.LinearVelocity <= 0 {
		return utils.NewConfigValidationError(fieldPath(path, "linear_vel"),
			errors.Errorf("must be positive, got %v", cfg.LinearVelocity))
	}
	if cfg.LinearAcceleration <= 0 {
		return utils.NewConfigValidationError(fieldPath(path, "linear_acc"),
			errors.Errorf("must be positive, got %v", cfg.LinearAcceleration))
	}
	if cfg.ServoLookaheadTime < MinServoLookahead || cfg.ServoLookaheadTime > MaxServoLookahead {
		return utils.NewConfigValidationError(fieldPath(path, "servo_lookahead_time"),
			errors.Errorf("must be in [%v, %v], got %v", MinServoLookahead, MaxServoLookahead, cfg.ServoLookaheadTime))
	}
	if cfg.ServoGain < MinServoGain || cfg.ServoGain > MaxServoGain {
		return utils.NewConfigValidationError(fieldPath(path, "servo_gain"),
			errors.Errorf("must be in [%v, %v], got %v", MinServoGain, MaxServoGain, cfg.ServoGain))
	}
	switch cfg.OperationMode {
	case OperationModeCartesian, OperationModeJoint, OperationModeNone:
	default:
		return utils.NewConfigValidationError(fieldPath(path, "operation_mode"),
			errors.Errorf("unknown operation mode %q", cfg.OperationMode))
	}
	if cfg.SafeZone == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "safe_zone")
	}
	if err := cfg.SafeZone.Validate(fieldPath(path, "safe_zone")); err != nil {
		return err
	}
	return cfg.Log.Validate(fieldPath(path, "log"))
}

// String prints a table of the effective settings.
func (cfg *Config) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Setting", "Value"})
	t.AppendRows([]table.Row{
		{"host", cfg.Host},
		{"port", cfg.Port},
		{"frequency_hz", fmt.Sprintf("%v (dt %v)", cfg.Frequency, control.CycleDuration(cfg.Frequency))},
		{"operation_mode", cfg.OperationMode},
		{"linear_vel", cfg.LinearVelocity},
		{"linear_acc", cfg.LinearAcceleration},
		{"servo_lookahead_time", cfg.ServoLookaheadTime},
		{"servo_gain", cfg.ServoGain},
		{"safe_zone", cfg.SafeZone},
		{"allow_commands_outside_zone", cfg.AllowCommandsOutsideZone},
		{"rt_control_priority", cfg.ControlPriority},
		{"rt_receive_priority", cfg.ReceivePriority},
		{"interface_priority", cfg.InterfacePriority},
	})
	return t.Render()
}

// Address returns the controller address as host:port.
func (cfg *Config) Address() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// Dt returns the control cycle duration in seconds.
func (cfg *Config) Dt() float64 {
	return control.Dt(cfg.Frequency)
}

func fieldPath(path, field string) string {
	if path == "" {
		return field
	}
	return fmt.Sprintf("%s.%s", path, field)
}
