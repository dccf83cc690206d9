package fetch

import (
	"fmt"
	"strings"

	"github.com/nfsfetch/nfsfetch/pkg/errs"
)

// defaultPortmapPort is the well-known Portmap/rpcbind port (RFC 1833).
const defaultPortmapPort = 111

// parsedURI is the decomposed form of a nfs://HOST[:PORT]/EXPORT/PATH
// URI (spec §6). EXPORT is the directory portion (everything up to and
// including the last "/"); FileName is the remainder.
type parsedURI struct {
	Host        string
	PortmapPort int
	ExportPath  string
	FileName    string
}

func parseURI(uri string) (*parsedURI, error) {
	const scheme = "nfs://"
	if !strings.HasPrefix(uri, scheme) {
		return nil, errs.Newf(errs.InvalidArg, "fetch: URI must start with %q: %q", scheme, uri)
	}
	rest := uri[len(scheme):]

	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return nil, errs.Newf(errs.InvalidArg, "fetch: URI missing path: %q", uri)
	}
	hostport := rest[:slash]
	path := rest[slash:]

	if hostport == "" {
		return nil, errs.Newf(errs.InvalidArg, "fetch: URI missing host: %q", uri)
	}

	host := hostport
	port := defaultPortmapPort
	if idx := strings.IndexByte(hostport, ':'); idx >= 0 {
		host = hostport[:idx]
		if _, err := fmt.Sscanf(hostport[idx+1:], "%d", &port); err != nil {
			return nil, errs.Newf(errs.InvalidArg, "fetch: invalid port in URI: %q", uri)
		}
		if host == "" {
			return nil, errs.Newf(errs.InvalidArg, "fetch: URI missing host: %q", uri)
		}
	}

	lastSlash := strings.LastIndexByte(path, '/')
	exportPath := path[:lastSlash+1]
	fileName := path[lastSlash+1:]
	if exportPath == "" || fileName == "" {
		return nil, errs.Newf(errs.InvalidArg, "fetch: URI path must name export and file: %q", uri)
	}

	return &parsedURI{
		Host:        host,
		PortmapPort: port,
		ExportPath:  exportPath,
		FileName:    fileName,
	}, nil
}
