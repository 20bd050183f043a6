package hdfs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"syscall"
	"testing"

	"github.com/viant/omnicm/backend"
)

func TestNamenodeAddresses(t *testing.T) {
	testCases := []struct {
		name string
		host string
		port int
		want []string
	}{
		{name: "default host", host: "default", want: nil},
		{name: "empty host", host: "", port: 9000, want: nil},
		{name: "autodetect port", host: "nn1", want: []string{"nn1:8020"}},
		{name: "explicit port", host: "nn1", port: 9000, want: []string{"nn1:9000"}},
		{name: "scheme prefix", host: "hdfs://nn1", port: 9000, want: []string{"nn1:9000"}},
		{name: "ha pair", host: "nn1, nn2:8021", port: 8020, want: []string{"nn1:8020", "nn2:8021"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := namenodeAddresses(tc.host, tc.port)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	confDir := t.TempDir()
	coreSite := `<?xml version="1.0"?>
<configuration>
  <property><name>fs.defaultFS</name><value>hdfs://nn-conf:9000</value></property>
</configuration>`
	if err := os.WriteFile(filepath.Join(confDir, "core-site.xml"), []byte(coreSite), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HADOOP_CONF_DIR", confDir)
	t.Setenv("HADOOP_HOME", "")
	t.Setenv("HADOOP_USER_NAME", "hadoop")

	testCases := []struct {
		name      string
		cfg       *backend.Config
		addresses []string
		user      string
	}{
		{name: "discovered", cfg: &backend.Config{Host: "default"}, addresses: []string{"nn-conf:9000"}, user: "hadoop"},
		{name: "extra conf override", cfg: &backend.Config{Host: "default", ExtraConf: map[string]string{"fs.defaultFS": "hdfs://nn-extra:8020"}}, addresses: []string{"nn-extra:8020"}, user: "hadoop"},
		{name: "explicit host", cfg: &backend.Config{Host: "nn-host", Port: 8022, User: "alice"}, addresses: []string{"nn-host:8022"}, user: "alice"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			options, err := clientOptions(tc.cfg)
			if err != nil {
				t.Fatalf("client options: %v", err)
			}
			if !reflect.DeepEqual(options.Addresses, tc.addresses) {
				t.Fatalf("addresses: got %v, want %v", options.Addresses, tc.addresses)
			}
			if options.User != tc.user {
				t.Fatalf("user: got %q, want %q", options.User, tc.user)
			}
			if options.KerberosClient != nil {
				t.Fatalf("unexpected kerberos client")
			}
		})
	}
}

type remoteError struct{ exception string }

func (e *remoteError) Error() string     { return e.exception + ": boom" }
func (e *remoteError) Exception() string { return e.exception }

func TestClassify(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want error
	}{
		{name: "quota", err: &remoteError{exception: "org.apache.hadoop.hdfs.protocol.DSQuotaExceededException"}, want: backend.ErrQuotaExceeded},
		{name: "standby", err: &remoteError{exception: "org.apache.hadoop.ipc.StandbyException"}, want: backend.ErrUnavailable},
		{name: "refused", err: fmt.Errorf("dial: %w", syscall.ECONNREFUSED), want: backend.ErrUnavailable},
		{name: "eof", err: io.ErrUnexpectedEOF, want: backend.ErrUnavailable},
		{name: "not exist", err: &os.PathError{Op: "stat", Path: "/x", Err: os.ErrNotExist}, want: backend.ErrNotExist},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			if !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if !errors.Is(got, tc.err) && !errors.Is(got, errors.Unwrap(tc.err)) {
				t.Fatalf("original error lost: %v", got)
			}
		})
	}
	if classify(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
	if !backend.IsTransient(classify(syscall.ECONNRESET)) {
		t.Fatalf("connection reset must be transient")
	}
}
