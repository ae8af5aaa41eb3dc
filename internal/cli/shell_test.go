package cli_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/prefstore/internal/cli"
)

func Test_Shell_Runs_Piped_Commands_Against_One_Record(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	script := `get theme
# comments and blank lines are skipped

set theme=dark font_size=16
get theme
get font_size
set theme=dark
frobnicate
get nope
exit
get theme
`

	stdout, stderr, code := c.RunWithInput(script, "shell")
	require.Equal(t, 0, code, "stderr=%s", stderr)

	require.Equal(t, "light\ndark\n16\nUnchanged\n", stdout)
	cli.AssertContains(t, stderr, "unknown command frobnicate")
	cli.AssertContains(t, stderr, `unknown field: "nope"`)

	doc := decodeDocument(t, c.ReadDocument())
	require.Equal(t, "dark", doc["theme"])
	require.Equal(t, int64(16), doc["font_size"])
}

func Test_Shell_Show_Fields_And_Reset(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("set", "zoom=3")

	stdout, stderr, code := c.RunWithInput("fields\nreset\nshow\n", "shell")
	require.Equal(t, 0, code, "stderr=%s", stderr)

	cli.AssertContains(t, stdout, "font_size")
	cli.AssertContains(t, stdout, "duration")
	cli.AssertContains(t, stdout, "zoom = 1.5")

	require.Equal(t, 1.5, decodeDocument(t, c.ReadDocument())["zoom"])
}

func Test_Shell_Fails_Without_Input(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	cli.AssertContains(t, c.MustFail("shell"), "no input")
}
