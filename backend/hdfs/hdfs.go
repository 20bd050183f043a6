package hdfs

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/colinmarc/hdfs/v2"
	"github.com/colinmarc/hdfs/v2/hadoopconf"
	krb "github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	pkgerrors "github.com/pkg/errors"

	"github.com/viant/omnicm/backend"
)

const (
	// Driver is the registry name of the native HDFS client.
	Driver = "hdfs"
	// DefaultPort is the namenode RPC port used when none is configured or discovered.
	DefaultPort = 8020

	defaultKrb5Conf        = "/etc/krb5.conf"
	defaultNamenodeService = "nn/_HOST"
)

func init() {
	backend.Register(Driver, Dial)
}

type fileSystem struct {
	client *hdfs.Client
}

// Dial connects to the namenode described by cfg.
// Host "default" (or empty) with port 0 reads fs.defaultFS from the Hadoop configuration found in
// HADOOP_CONF_DIR / HADOOP_HOME; ExtraConf entries override hdfs-site.xml properties.
func Dial(ctx context.Context, cfg *backend.Config) (backend.FileSystem, error) {
	options, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	client, err := hdfs.NewClient(options)
	if err != nil {
		return nil, pkgerrors.Wrapf(unavailable(err), "hdfs: connect %v", options.Addresses)
	}
	return &fileSystem{client: client}, nil
}

func clientOptions(cfg *backend.Config) (hdfs.ClientOptions, error) {
	conf, err := hadoopconf.LoadFromEnvironment()
	if err != nil {
		return hdfs.ClientOptions{}, pkgerrors.Wrap(err, "hdfs: load hadoop configuration")
	}
	if conf == nil {
		conf = hadoopconf.HadoopConf{}
	}
	for k, v := range cfg.ExtraConf {
		conf[k] = v
	}
	options := hdfs.ClientOptionsFromConf(conf)
	if addresses := namenodeAddresses(cfg.Host, cfg.Port); len(addresses) > 0 {
		options.Addresses = addresses
	} else if len(options.Addresses) == 0 {
		options.Addresses = []string{net.JoinHostPort("localhost", strconv.Itoa(DefaultPort))}
	}
	if cfg.KerbTicket != "" || cfg.Password != "" {
		if options.KerberosClient, err = kerberosClient(cfg); err != nil {
			return hdfs.ClientOptions{}, err
		}
		if options.KerberosServicePrincipleName == "" {
			options.KerberosServicePrincipleName = defaultNamenodeService
		}
		options.UseDatanodeHostname = true
	} else if cfg.User != "" {
		options.User = cfg.User
	}
	if options.User == "" && options.KerberosClient == nil {
		options.User = os.Getenv("HADOOP_USER_NAME")
	}
	return options, nil
}

// namenodeAddresses expands host (comma separated for HA pairs) with port. Empty means use the configuration.
func namenodeAddresses(host string, port int) []string {
	host = strings.TrimSpace(host)
	if host == "" || host == "default" {
		return nil
	}
	host = strings.TrimPrefix(host, "hdfs://")
	var result []string
	for _, h := range strings.Split(host, ",") {
		if h = strings.TrimSpace(h); h == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(h); err == nil {
			result = append(result, h)
			continue
		}
		p := port
		if p == 0 {
			p = DefaultPort
		}
		result = append(result, net.JoinHostPort(h, strconv.Itoa(p)))
	}
	return result
}

func kerberosClient(cfg *backend.Config) (*krb.Client, error) {
	confPath := cfg.Krb5Conf
	if confPath == "" {
		confPath = os.Getenv("KRB5_CONFIG")
	}
	if confPath == "" {
		confPath = defaultKrb5Conf
	}
	krbConf, err := config.Load(confPath)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "hdfs: load krb5 config %s", confPath)
	}
	if cfg.KerbTicket != "" {
		ccache, err := credentials.LoadCCache(cfg.KerbTicket)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "hdfs: load ticket cache %s", cfg.KerbTicket)
		}
		client, err := krb.NewFromCCache(ccache, krbConf, krb.DisablePAFXFAST(true))
		if err != nil {
			return nil, pkgerrors.Wrap(unavailable(err), "hdfs: kerberos client from ticket cache")
		}
		return client, nil
	}
	client := krb.NewWithPassword(cfg.User, cfg.Realm, cfg.Password, krbConf, krb.DisablePAFXFAST(true))
	if err := client.Login(); err != nil {
		return nil, pkgerrors.Wrap(unavailable(err), "hdfs: kerberos login")
	}
	return client, nil
}

func (f *fileSystem) Stat(ctx context.Context, p string) (*backend.FileInfo, error) {
	info, err := f.client.Stat(p)
	if err != nil {
		return nil, classify(err)
	}
	return newFileInfo(p, info), nil
}

func (f *fileSystem) List(ctx context.Context, p string) ([]*backend.FileInfo, error) {
	infos, err := f.client.ReadDir(p)
	if err != nil {
		return nil, classify(err)
	}
	result := make([]*backend.FileInfo, 0, len(infos))
	for _, info := range infos {
		result = append(result, newFileInfo(path.Join(p, info.Name()), info))
	}
	return result, nil
}

func (f *fileSystem) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	reader, err := f.client.Open(p)
	if err != nil {
		return nil, classify(err)
	}
	return reader, nil
}

func (f *fileSystem) Create(ctx context.Context, p string, mode os.FileMode, content io.Reader, exclusive bool) error {
	if !exclusive {
		if err := f.client.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return classify(err)
		}
	}
	if err := f.client.MkdirAll(path.Dir(p), 0o770); err != nil {
		return classify(err)
	}
	writer, err := f.client.Create(p)
	if err != nil {
		return classify(err)
	}
	if _, err = io.Copy(writer, content); err != nil {
		_ = writer.Close()
		return classify(err)
	}
	if err = writer.Close(); err != nil {
		return classify(err)
	}
	if mode != 0 {
		if err = f.client.Chmod(p, mode.Perm()); err != nil {
			return classify(err)
		}
	}
	return nil
}

func (f *fileSystem) Delete(ctx context.Context, p string, recursive bool) error {
	var err error
	if recursive {
		if _, err = f.client.Stat(p); err == nil {
			err = f.client.RemoveAll(p)
		}
	} else {
		err = f.client.Remove(p)
	}
	return classify(err)
}

func (f *fileSystem) Rename(ctx context.Context, from, to string) error {
	return classify(f.client.Rename(from, to))
}

func (f *fileSystem) Mkdir(ctx context.Context, p string, mode os.FileMode) error {
	if mode == 0 {
		mode = 0o770
	}
	if err := f.client.MkdirAll(p, mode.Perm()); err != nil {
		return classify(err)
	}
	return classify(f.client.Chmod(p, mode.Perm()))
}

func (f *fileSystem) Close() error {
	return f.client.Close()
}

func newFileInfo(p string, info os.FileInfo) *backend.FileInfo {
	ret := &backend.FileInfo{
		Name:     path.Base(p),
		Path:     p,
		IsDir:    info.IsDir(),
		Size:     info.Size(),
		Mode:     info.Mode(),
		ModTime:  info.ModTime(),
		Accessed: info.ModTime(),
	}
	if accessed, ok := info.(interface{ AccessTime() time.Time }); ok {
		if at := accessed.AccessTime(); !at.IsZero() {
			ret.Accessed = at
		}
	}
	return ret
}

// classify maps namenode exceptions and transport failures onto the backend taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var remote interface{ Exception() string }
	if errors.As(err, &remote) {
		switch exception := remote.Exception(); {
		case strings.Contains(exception, "QuotaExceeded"):
			return pkgerrors.Wrap(&wrapped{err: err, kind: backend.ErrQuotaExceeded}, "hdfs")
		case strings.Contains(exception, "StandbyException"), strings.Contains(exception, "SafeModeException"),
			strings.Contains(exception, "RetriableException"):
			return pkgerrors.Wrap(&wrapped{err: err, kind: backend.ErrUnavailable}, "hdfs")
		}
	}
	return unavailable(err)
}

// unavailable tags network level failures as transient.
func unavailable(err error) error {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, syscall.EPIPE):
		return &wrapped{err: err, kind: backend.ErrUnavailable}
	}
	return err
}

type wrapped struct {
	err  error
	kind error
}

func (w *wrapped) Error() string { return w.err.Error() }

func (w *wrapped) Unwrap() []error { return []error{w.kind, w.err} }
