package apispec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	doc, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, doc.Paths.Find("/users"))
	assert.NotNil(t, doc.Paths.Find("/users/{id}"))
	for _, name := range []string{SchemaUser, SchemaSingleUser, SchemaUserList, SchemaCreated, SchemaUpdated} {
		assert.Contains(t, doc.Components.Schemas, name)
	}
}

func TestValidateJSON_User(t *testing.T) {
	ok := `{"id":2,"email":"janet.weaver@reqres.in","first_name":"Janet","last_name":"Weaver","avatar":"https://reqres.in/img/faces/2-image.jpg"}`
	require.NoError(t, ValidateJSON(SchemaUser, []byte(ok)))

	missing := `{"id":2,"email":"janet.weaver@reqres.in","first_name":"Janet"}`
	assert.Error(t, ValidateJSON(SchemaUser, []byte(missing)))

	badEmail := `{"id":2,"email":"nobody","first_name":"Janet","last_name":"Weaver","avatar":""}`
	assert.Error(t, ValidateJSON(SchemaUser, []byte(badEmail)))

	wrongType := `{"id":"2","email":"a@b","first_name":"Janet","last_name":"Weaver","avatar":""}`
	assert.Error(t, ValidateJSON(SchemaUser, []byte(wrongType)))
}

func TestValidateJSON_List(t *testing.T) {
	list := `{"page":1,"per_page":1,"total":12,"total_pages":12,"data":[
		{"id":1,"email":"george.bluth@reqres.in","first_name":"George","last_name":"Bluth","avatar":"x"}]}`
	require.NoError(t, ValidateJSON(SchemaUserList, []byte(list)))

	assert.Error(t, ValidateJSON(SchemaUserList, []byte(`{"page":1}`)))
}

func TestValidate_Errors(t *testing.T) {
	assert.ErrorContains(t, Validate("Order", map[string]any{}), `unknown schema "Order"`)
	assert.Error(t, ValidateJSON(SchemaCreated, []byte("not json")))
	assert.NoError(t, Validate(SchemaCreated, map[string]any{"id": "7", "createdAt": "2024-01-01T00:00:00Z"}))
}

func TestRaw(t *testing.T) {
	assert.Contains(t, string(Raw()), "openapi: 3.0.3")
}
