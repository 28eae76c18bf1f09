// Package prober opens short-lived MongoDB admin connections to issue
// ping, replSetInitiate, addShard, and user-creation commands, and to
// poll cluster state during provisioning. Every client is opened fresh
// and closed on every exit path, including error (scoped acquisition).
package prober

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zph/mlaunch/pkg/mlerrors"
	mloptions "github.com/zph/mlaunch/pkg/options"
)

const connectTimeout = 10 * time.Second

// Mode selects how a client connects: direct to a single host, or
// addressed by replica set name (the driver then discovers topology).
type Mode struct {
	Direct         bool
	ReplicaSetName string
}

// DirectMode opens a connection that talks only to the given host,
// bypassing replica set discovery.
func DirectMode() Mode { return Mode{Direct: true} }

// ReplicaSetMode opens a connection addressed to the named replica set.
func ReplicaSetMode(name string) Mode { return Mode{ReplicaSetName: name} }

// RouterMode opens a plain connection to a mongos router: neither direct
// nor replica-set discovery applies, since the router is itself the
// single endpoint.
func RouterMode() Mode { return Mode{} }

// connect opens a client against address. connOpts supplies TLS
// configuration, and, when it carries a username/password, connection
// credentials — callers that must connect *before* that user exists
// (e.g. the first ping in a fresh replica set, or CreateUser itself)
// pass a connOpts with Username/Password left empty.
func connect(ctx context.Context, address string, mode Mode, connOpts mloptions.Options) (*mongo.Client, error) {
	uri := fmt.Sprintf("mongodb://%s", address)
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout)

	if mode.Direct {
		clientOpts.SetDirect(true)
	} else if mode.ReplicaSetName != "" {
		clientOpts.SetReplicaSet(mode.ReplicaSetName)
	}

	if connOpts.TLSEnabled() {
		tlsConfig, err := buildTLSConfig(connOpts)
		if err != nil {
			return nil, &mlerrors.ProbeError{Msg: "failed to build TLS config", Err: err}
		}
		clientOpts.SetTLSConfig(tlsConfig)
	}

	if connOpts.AuthEnabled() {
		clientOpts.SetAuth(options.Credential{
			Username:   connOpts.Username,
			Password:   connOpts.Password,
			AuthSource: "admin",
		})
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, &mlerrors.ProbeError{Msg: fmt.Sprintf("failed to connect to %s", address), Err: err}
	}
	return client, nil
}

func buildTLSConfig(opts mloptions.Options) (*tls.Config, error) {
	cfg := &tls.Config{}

	if opts.TLSCAFile != "" {
		pem, err := os.ReadFile(opts.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA file %s", opts.TLSCAFile)
		}
		cfg.RootCAs = pool
	}

	if opts.TLSCertificateKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.TLSCertificateKeyFile, opts.TLSCertificateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// Ping opens a client against address in mode, sends {ping: 1} on admin,
// and closes the client on every exit path.
func Ping(ctx context.Context, address string, mode Mode, tlsOpts mloptions.Options) error {
	client, err := connect(ctx, address, mode, tlsOpts)
	if err != nil {
		return err
	}
	defer disconnect(client)

	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return &mlerrors.ProbeError{Msg: fmt.Sprintf("ping to %s failed", address), Err: err}
	}
	return nil
}

// Member describes one replica set member for ReplicaSetInitiate.
type Member struct {
	Host        string
	ArbiterOnly bool
}

// ReplicaSetInitiate sends replSetInitiate to seedHost with the given
// member list. Members are assigned _id in list order; an arbiter (if
// present) is expected last, per the caller's ordering, and receives
// arbiterOnly: true. tlsOpts carries only TLS settings here: no user
// exists yet at this point in provisioning, so its Username/Password
// must be left blank.
func ReplicaSetInitiate(ctx context.Context, seedHost, rsName string, members []Member, configsvr bool, tlsOpts mloptions.Options) error {
	client, err := connect(ctx, seedHost, DirectMode(), tlsOpts)
	if err != nil {
		return err
	}
	defer disconnect(client)

	memberDocs := make(bson.A, len(members))
	for i, m := range members {
		doc := bson.M{"_id": i, "host": m.Host}
		if m.ArbiterOnly {
			doc["arbiterOnly"] = true
		}
		memberDocs[i] = doc
	}

	rsConfig := bson.M{
		"_id":     rsName,
		"members": memberDocs,
	}
	if configsvr {
		rsConfig["configsvr"] = true
	}

	cmd := bson.M{"replSetInitiate": rsConfig}
	if err := client.Database("admin").RunCommand(ctx, cmd).Err(); err != nil {
		return &mlerrors.ProbeError{Msg: fmt.Sprintf("replSetInitiate on %s failed", seedHost), Err: err}
	}
	return nil
}

// AddShard sends addShard on routerAddress for the given shard connection
// string (e.g. "shard01/localhost:30003"). tlsOpts carries only TLS
// settings: addShard runs before the cluster has a user.
func AddShard(ctx context.Context, routerAddress, shardConnString string, tlsOpts mloptions.Options) error {
	client, err := connect(ctx, routerAddress, RouterMode(), tlsOpts)
	if err != nil {
		return err
	}
	defer disconnect(client)

	cmd := bson.M{"addShard": shardConnString}
	if err := client.Database("admin").RunCommand(ctx, cmd).Err(); err != nil {
		return &mlerrors.AddShardError{Msg: fmt.Sprintf("addShard %s via %s failed", shardConnString, routerAddress), Err: err}
	}
	return nil
}

// CreateUser creates username/password on admin with the given roles
// (defaulting to ["root"] when roles is empty).
func CreateUser(ctx context.Context, address string, mode Mode, tlsOpts mloptions.Options, username, password string, roles []string) error {
	if len(roles) == 0 {
		roles = []string{"root"}
	}

	client, err := connect(ctx, address, mode, tlsOpts)
	if err != nil {
		return err
	}
	defer disconnect(client)

	cmd := bson.D{
		{Key: "createUser", Value: username},
		{Key: "pwd", Value: password},
		{Key: "roles", Value: roles},
	}
	if err := client.Database("admin").RunCommand(ctx, cmd).Err(); err != nil {
		return &mlerrors.ProbeError{Msg: fmt.Sprintf("createUser on %s failed", address), Err: err}
	}
	return nil
}

const provisionPollInterval = 1 * time.Second

// WaitUntilProvisioned repeatedly fetches replSetGetStatus for host,
// succeeding once it reports itself PRIMARY or SECONDARY. It sleeps
// provisionPollInterval between polls and fails with ProvisionTimeout
// once deadline passes.
func WaitUntilProvisioned(ctx context.Context, host string, deadline time.Duration, tlsOpts mloptions.Options) error {
	cutoff := time.Now().Add(deadline)

	for {
		ok, err := isPrimaryOrSecondary(ctx, host, tlsOpts)
		if err == nil && ok {
			return nil
		}

		if time.Now().After(cutoff) {
			return &mlerrors.ProvisionTimeout{Msg: fmt.Sprintf("%s never reached primary/secondary within %s", host, deadline)}
		}

		select {
		case <-ctx.Done():
			return &mlerrors.ProvisionTimeout{Msg: fmt.Sprintf("context cancelled waiting for %s: %v", host, ctx.Err())}
		case <-time.After(provisionPollInterval):
		}
	}
}

func isPrimaryOrSecondary(ctx context.Context, host string, tlsOpts mloptions.Options) (bool, error) {
	client, err := connect(ctx, host, DirectMode(), tlsOpts)
	if err != nil {
		return false, err
	}
	defer disconnect(client)

	var status bson.M
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "replSetGetStatus", Value: 1}}).Decode(&status); err != nil {
		return false, err
	}

	members, ok := status["members"].(bson.A)
	if !ok {
		return false, fmt.Errorf("replSetGetStatus response missing members")
	}

	for _, raw := range members {
		member, ok := raw.(bson.M)
		if !ok {
			continue
		}
		name, _ := member["name"].(string)
		if name != host {
			continue
		}
		state, _ := member["stateStr"].(string)
		return state == "PRIMARY" || state == "SECONDARY", nil
	}

	return false, nil
}

func disconnect(client *mongo.Client) {
	dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = client.Disconnect(dctx)
}
