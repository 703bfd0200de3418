package executor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const stubCurl = `#!/bin/sh
while [ $# -gt 0 ]; do
  if [ "$1" = "-w" ]; then fmt="$2"; shift; fi
  shift
done
printf '%s' '{"data":{"version":"stub"}}'
printf '%s200' "${fmt%"%{http_code}"}"
`

func writeStubCurl(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "curl"), []byte(stubCurl), 0755))
}

func getenvPath() string {
	return os.Getenv("PATH")
}
