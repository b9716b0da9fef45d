package cli

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestInspect_Golden(t *testing.T) {
	out, err := execute(t, NewInspectCommand, "text", layoutsDir(t), "--entity", "Product")
	require.NoError(t, err)

	newGolden(t).Assert(t, "inspect_product", []byte(out))
}

func TestInspect_AllEntities(t *testing.T) {
	out, err := execute(t, NewInspectCommand, "text", layoutsDir(t))
	require.NoError(t, err)

	assert.Contains(t, out, "entity User\n")
	assert.Contains(t, out, "  read:   id: String!, name: String!, age: Int, status: Status!, tags: [String!]!, address: Address\n")
	assert.Contains(t, out, "  create: name: String!, age: Int, status: Status!, tags: [String!]!, address: AddressInput\n")
	assert.Contains(t, out, "  update: name: String, age: Int, status: Status, tags: [String!], address: AddressUpdate\n")
	assert.Contains(t, out, "  sort:   name, address.city\n")
	assert.Contains(t, out, "input UserAddressFilter {\n  city: StringOperators\n}\n")
	assert.Contains(t, out, "}\n\nentity Product\n")
}

func TestInspect_JSON(t *testing.T) {
	out, err := execute(t, NewInspectCommand, "json", layoutsDir(t), "-e", "User")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   []EntityInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)

	user := resp.Data[0]
	assert.Equal(t, "User", user.Name)
	assert.Equal(t, "UserFilter", user.Filter)
	assert.Equal(t, []string{"name", "address.city"}, user.SortPaths)
	assert.Contains(t, user.Grammar, "input UserFilter {")
	require.NotEmpty(t, user.Fields)
	assert.Equal(t, FieldInfo{Name: "id", Read: "String!"}, user.Fields[0], "computed fields are read-only")
	assert.Equal(t, FieldInfo{Name: "age", Read: "Int", Create: "Int", Update: "Int"}, user.Fields[2])
}

func TestInspect_LayoutProblems(t *testing.T) {
	dir := writeLayout(t, `
entity: User: fields: {
	name: {type: "string", pattern: "("}
	age: {type: "int", min: 10, max: 1}
}
`)

	out, err := execute(t, NewInspectCommand, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Layout check failed")
	assert.Contains(t, out, "E121: User.name:")
	assert.Contains(t, out, "E122: User.age:")

	out, err = execute(t, NewInspectCommand, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   LayoutCheckResult `json:"data"`
		Error  CLIError          `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.Len(t, resp.Data.Errors, 2)
	assert.Equal(t, "E121", resp.Error.Code)
}

func TestInspect_CompileErrors(t *testing.T) {
	dir := writeLayout(t, `
entity: A: fields: x: {type: "text"}
entity: B: fields: y: {type: "list"}
`)

	out, err := execute(t, NewInspectCommand, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "2 layout error(s)")
	assert.Contains(t, out, "A.x.type")
	assert.Contains(t, out, "B.y.of")
}

func TestInspect_UnknownEntity(t *testing.T) {
	out, err := execute(t, NewInspectCommand, "text", layoutsDir(t), "--entity", "Order")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeUnknownEntity)
	assert.Contains(t, out, "known: User, Product")
}

func TestInspect_MissingDirectory(t *testing.T) {
	out, err := execute(t, NewInspectCommand, "text", "/nonexistent/layouts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
}
