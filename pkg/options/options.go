// Package options defines the flat input record that drives planning and
// validates it up front, before any side effect occurs.
package options

import (
	"dario.cat/mergo"

	"github.com/zph/mlaunch/pkg/mlerrors"
)

// DefaultBasePort is the lowest port allocated when Options.BasePort is unset.
const DefaultBasePort = 27017

// DefaultDataBearingNodes is the default replica set member count with no arbiter.
const DefaultDataBearingNodes = 3

// DefaultDataBearingNodesWithArbiter is the default replica set member count
// when an arbiter is configured.
const DefaultDataBearingNodesWithArbiter = 2

// Options is the flat record describing a deployment to provision. It is
// not a fluent builder: topology is discriminated entirely by the
// presence of ReplicaSet/Sharded, and defaults are applied once up front.
type Options struct {
	Dir    string `yaml:"dir"`
	BinDir string `yaml:"bin_dir,omitempty"`

	BasePort int `yaml:"base_port"`

	ReplicaSet string `yaml:"replica_set,omitempty"`

	Sharded int `yaml:"sharded,omitempty"`
	Mongos  int `yaml:"mongos,omitempty"`
	CSRS    bool `yaml:"csrs,omitempty"`

	Arbiter          bool `yaml:"arbiter,omitempty"`
	DataBearingNodes int  `yaml:"data_bearing_nodes,omitempty"`

	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	TLSMode               string `yaml:"tls_mode,omitempty"`
	TLSCertificateKeyFile string `yaml:"tls_certificate_key_file,omitempty"`
	TLSCAFile             string `yaml:"tls_ca_file,omitempty"`

	PassthroughArgs             []string `yaml:"passthrough_args,omitempty"`
	MongodPassthroughArgs       []string `yaml:"mongod_passthrough_args,omitempty"`
	MongosPassthroughArgs       []string `yaml:"mongos_passthrough_args,omitempty"`
	ConfigServerPassthroughArgs []string `yaml:"config_server_passthrough_args,omitempty"`
}

// IsSharded reports whether options select the sharded topology.
func (o Options) IsSharded() bool { return o.Sharded >= 1 }

// IsReplicaSet reports whether options select the (unsharded) replica set topology.
func (o Options) IsReplicaSet() bool { return !o.IsSharded() && o.ReplicaSet != "" }

// IsStandalone reports whether options select the standalone topology.
func (o Options) IsStandalone() bool { return !o.IsSharded() && o.ReplicaSet == "" }

// AuthEnabled reports whether a username/password pair was supplied.
func (o Options) AuthEnabled() bool { return o.Username != "" && o.Password != "" }

// TLSEnabled reports whether TLS configuration was supplied.
func (o Options) TLSEnabled() bool { return o.TLSMode != "" }

// Validate rejects inconsistent option combinations before any side
// effect occurs, per the constraints in the data model.
func (o Options) Validate() error {
	if o.Dir == "" {
		return &mlerrors.OptionError{Msg: "dir is required"}
	}
	if (o.Username == "") != (o.Password == "") {
		return &mlerrors.OptionError{Msg: "username and password must be set together"}
	}
	if o.Arbiter && o.ReplicaSet == "" {
		return &mlerrors.OptionError{Msg: "arbiter requires replica_set"}
	}
	if o.DataBearingNodes != 0 && o.ReplicaSet == "" {
		return &mlerrors.OptionError{Msg: "data_bearing_nodes requires replica_set"}
	}
	if o.Sharded != 0 && o.Sharded < 1 {
		return &mlerrors.OptionError{Msg: "sharded must be >= 1 when set"}
	}
	if o.IsSharded() && o.Mongos != 0 && o.Mongos < 1 {
		return &mlerrors.OptionError{Msg: "mongos must be >= 1 when set"}
	}
	return nil
}

// WithDefaults returns a copy of o with zero-valued fields filled in from
// the computed defaults, mirroring the teacher's layered GlobalConfig
// merge: an explicit value on o always wins, mergo only fills holes.
func WithDefaults(o Options) (Options, error) {
	defaults := Options{
		BasePort: DefaultBasePort,
	}

	if o.IsSharded() && o.Mongos == 0 {
		defaults.Mongos = 1
	}

	if o.ReplicaSet != "" && o.DataBearingNodes == 0 {
		if o.Arbiter {
			defaults.DataBearingNodes = DefaultDataBearingNodesWithArbiter
		} else {
			defaults.DataBearingNodes = DefaultDataBearingNodes
		}
	}

	merged := o
	if err := mergo.Merge(&merged, defaults); err != nil {
		return Options{}, &mlerrors.OptionError{Msg: "failed to apply defaults: " + err.Error()}
	}
	return merged, nil
}
