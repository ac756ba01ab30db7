package pachfs

import (
	"strconv"

	"emperror.dev/errors"
	"github.com/je4/utils/v2/pkg/zLogger"

	"github.com/tybritten/fs-pach/config"
	"github.com/tybritten/fs-pach/pkg/pfs"
	"github.com/tybritten/fs-pach/pkg/uri"
)

// Opener builds filesystems from pach:// URLs of the form
// pach://project/repo@branch:/dir?host=...&port=...&auth_token=...
// Connection settings come from the config; query parameters override
// them per URL.
type Opener struct {
	Dial   pfs.DialFunc
	Config *config.Config
	Logger zLogger.ZLogger
}

func NewOpener(dial pfs.DialFunc, conf *config.Config, logger zLogger.ZLogger) *Opener {
	if conf == nil {
		conf = config.Default()
	}
	return &Opener{Dial: dial, Config: conf, Logger: logger}
}

func (opener *Opener) Open(fsURL string) (*FS, error) {
	if opener.Dial == nil {
		return nil, errors.New("no dial function given")
	}
	u, err := uri.Parse(fsURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "pach" {
		return nil, errors.Errorf("unsupported scheme '%s' in '%s'", u.Scheme, fsURL)
	}
	coord := pfs.Coordinate{
		Project: u.Project,
		Repo:    u.Repo,
		Branch:  u.Branch,
	}
	connect := pfs.ConnectConfig{
		Host:      string(opener.Config.Pachd.Host),
		Port:      opener.Config.Pachd.Port,
		AuthToken: string(opener.Config.Pachd.AuthToken),
		TLS:       opener.Config.Pachd.TLS,
	}
	if host := u.Query.Get("host"); host != "" {
		connect.Host = host
	}
	if port := u.Query.Get("port"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid port '%s' in '%s'", port, fsURL)
		}
		connect.Port = p
	}
	if token := u.Query.Get("auth_token"); token != "" {
		connect.AuthToken = token
	}
	if tls := u.Query.Get("tls"); tls != "" {
		t, err := strconv.ParseBool(tls)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid tls flag '%s' in '%s'", tls, fsURL)
		}
		connect.TLS = t
	}
	dial := opener.Dial
	opts := &Options{
		DirPath:   u.Path,
		Delimiter: opener.Config.FS.Delimiter,
		TempDir:   opener.Config.FS.TempDir,
	}
	return NewFS(func() (pfs.Client, error) { return dial(connect) }, coord, opts, opener.Logger)
}
