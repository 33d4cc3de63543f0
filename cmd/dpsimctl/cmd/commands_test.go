package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitCmd_Flags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Outage", r.FormValue("simulation_type"))
		assert.Equal(t, "3", r.FormValue("model_id"))
		assert.Equal(t, "winter", r.FormValue("name"))
		assert.Equal(t, "NRP", r.FormValue("parameters.solver"))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"simulation_id": 12}`))
	}))
	defer server.Close()

	out := new(bytes.Buffer)
	root := RootCmd()
	root.SetOut(out)
	root.SetArgs([]string{"--url", server.URL, "submit", "Outage", "3", "--name", "winter", "--parameter", "solver=NRP"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "Submitted simulation 12\n", out.String())
}

func TestGetCmd_InvalidId(t *testing.T) {
	root := RootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"get", "seven"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid simulation id")
}
