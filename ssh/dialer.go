// Package ssh routes outbound connections through a bastion host.
//
// Design decisions:
//   - Uses golang.org/x/crypto/ssh for the SSH client.
//   - Instead of a local port forward, callers get a DialContext that
//     opens a channel on the SSH connection. It plugs directly into
//     http.Transport, websocket.Dialer and pgx's DialFunc.
//   - Only key-based authentication is supported (with optional passphrase).
package ssh

import (
	"context"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/DachengChen/aibridge/config"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// Dialer dials TCP connections through an SSH bastion.
type Dialer struct {
	sshConfig *ssh.ClientConfig
	sshAddr   string // e.g. "bastion:22"

	mu     sync.Mutex
	client *ssh.Client
	closed bool
}

// NewDialer creates a dialer configuration (does not connect yet).
func NewDialer(cfg config.TunnelConfig) (*Dialer, error) {
	authMethods, err := buildAuthMethods(cfg)
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // TODO: verify against ~/.ssh/known_hosts
	}

	return &Dialer{
		sshConfig: sshConfig,
		sshAddr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
	}, nil
}

// Connect opens the SSH connection if it is not already up.
// DialContext calls it lazily.
func (d *Dialer) Connect(ctx context.Context) error {
	_, err := d.sshClient(ctx)
	return err
}

func (d *Dialer) sshClient(ctx context.Context) (*ssh.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, errors.New("ssh dialer closed")
	}
	if d.client != nil {
		return d.client, nil
	}

	var nd net.Dialer
	nc, err := nd.DialContext(ctx, "tcp", d.sshAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "ssh dial %s", d.sshAddr)
	}
	// Unblock the handshake when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = nc.SetDeadline(time.Unix(1, 0)) })
	conn, chans, reqs, err := ssh.NewClientConn(nc, d.sshAddr, d.sshConfig)
	if !stop() || err != nil {
		nc.Close()
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, errors.Wrapf(err, "ssh dial %s", d.sshAddr)
	}

	client := ssh.NewClient(conn, chans, reqs)
	d.client = client
	go d.watch(client)
	return client, nil
}

// watch forgets client once its connection ends, so the next dial
// reconnects to the bastion.
func (d *Dialer) watch(client *ssh.Client) {
	_ = client.Wait()
	d.drop(client)
}

func (d *Dialer) drop(client *ssh.Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == client {
		d.client = nil
	}
}

// alive reports whether the bastion still answers on client.
func alive(client *ssh.Client) bool {
	_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
	return err == nil
}

// DialContext opens addr on the far side of the bastion. A dial that
// fails because the bastion connection died is retried once on a fresh
// connection.
func (d *Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	client, err := d.sshClient(ctx)
	if err != nil {
		return nil, err
	}
	conn, err := dialVia(ctx, client, network, addr)
	if err != nil && ctx.Err() == nil && !alive(client) {
		d.drop(client)
		client.Close()
		if client, err = d.sshClient(ctx); err != nil {
			return nil, err
		}
		conn, err = dialVia(ctx, client, network, addr)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(err, "dial %s via %s", addr, d.sshAddr)
	}
	return conn, nil
}

func dialVia(ctx context.Context, client *ssh.Client, network, addr string) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := client.Dial(network, addr)
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// HTTPClient returns a client whose connections go through the bastion.
// Everything else keeps http.DefaultTransport's behaviour.
func (d *Dialer) HTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = d.DialContext
	return &http.Client{Transport: transport}
}

// Close tears down the SSH connection; later dials fail.
func (d *Dialer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	if d.client != nil {
		d.client.Close()
		d.client = nil
	}
}

// buildAuthMethods creates SSH auth methods from config.
func buildAuthMethods(cfg config.TunnelConfig) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if cfg.KeyPath != "" {
		keyBytes, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, errors.Wrapf(err, "read ssh key %s", cfg.KeyPath)
		}

		var signer ssh.Signer
		if cfg.KeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(cfg.KeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse ssh key")
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if len(methods) == 0 {
		return nil, errors.New("no SSH authentication methods configured (set tunnel.key_path)")
	}

	return methods, nil
}
