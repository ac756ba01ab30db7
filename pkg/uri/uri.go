package uri

import (
	"net/url"
	"regexp"

	"emperror.dev/errors"
)

var uriRegexp = regexp.MustCompile(`^(?P<scheme>[a-z]+[a-z0-9+-.]*)://((?P<project>[^/@:?#]+)/)?(?P<repo>[^/@:?#]+)(@(?P<branch>[^:/?#]+))?(:(?P<path>[^?#]*))?(\?(?P<query>[^#]*))?$`)

// URI addresses a directory on a repo/branch, e.g.
// pach://images/photos@master:/raw?host=pachd.local&port=30650
// Project, branch, path and query are all optional.
type URI struct {
	Scheme  string
	Project string
	Repo    string
	Branch  string
	Path    string
	Query   url.Values
}

func Parse(str string) (*URI, error) {
	u := &URI{}
	groupNames := uriRegexp.SubexpNames()
	matches := uriRegexp.FindAllStringSubmatch(str, -1)
	if matches == nil {
		return nil, errors.Errorf("'%s' does not match regexp '%s'", str, uriRegexp.String())
	}
	var query string
	for _, match := range matches {
		for groupIdx, group := range match {
			switch groupNames[groupIdx] {
			case "scheme":
				u.Scheme = group
			case "project":
				u.Project = group
			case "repo":
				u.Repo = group
			case "branch":
				u.Branch = group
			case "path":
				u.Path = group
			case "query":
				query = group
			}
		}
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid query in '%s'", str)
	}
	u.Query = values
	return u, nil
}
