package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"railtycoon.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	commandSchema := compile("command.schema.json")
	resultSchema := compile("result.schema.json")
	batchSchema := compile("batch.schema.json")
	digestSchema := compile("digest.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "name":"bot1",
	  "role":"company"
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "client_id":2,
	  "company":0,
	  "server_tick":14,
	  "world_params":{
	    "tick_rate_hz":10,
	    "map_width":64,
	    "map_height":64,
	    "seed":1337,
	    "max_loan":300000,
	    "loan_step":10000,
	    "pause_level":3,
	    "net_mode":"server"
	  },
	  "map":"AQQ="
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var command any
	_ = json.Unmarshal([]byte(`{
	  "type":"COMMAND",
	  "protocol_version":"1.0",
	  "tile":130,
	  "p1":1,
	  "p2":0,
	  "cmd":1,
	  "text":"",
	  "callback":1,
	  "aux_kind":1,
	  "aux_data":"AQACAAAAAAAAAABA"
	}`), &command)
	validate(commandSchema, command)

	var result any
	_ = json.Unmarshal([]byte(`{
	  "type":"RESULT",
	  "protocol_version":"1.0",
	  "tick":15,
	  "cmd":1,
	  "tile":130,
	  "p1":1,
	  "p2":0,
	  "ok":true,
	  "cost":1600,
	  "callback":1
	}`), &result)
	validate(resultSchema, result)

	var batch any
	_ = json.Unmarshal([]byte(`{
	  "type":"BATCH",
	  "protocol_version":"1.0",
	  "tick":15,
	  "commands":[
	    {"company":0,"client":2,"tile":130,"p1":1,"p2":0,"cmd":257,"text":""}
	  ]
	}`), &batch)
	validate(batchSchema, batch)

	var digest any
	_ = json.Unmarshal([]byte(`{
	  "type":"DIGEST",
	  "protocol_version":"1.0",
	  "tick":16,
	  "digest":"`+sampleDigest+`"
	}`), &digest)
	validate(digestSchema, digest)
}

const sampleDigest = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func TestMessageRouting(t *testing.T) {
	raw := []byte(`{"type":"COMMAND","protocol_version":"1.0","tile":0,"p1":0,"p2":0,"cmd":3,"text":"New Name"}`)
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		t.Fatalf("decode base: %v", err)
	}
	if base.Type != protocol.TypeCommand {
		t.Fatalf("type = %q", base.Type)
	}
	var cmd protocol.CommandMsg
	if err := json.Unmarshal(raw, &cmd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cmd.Cmd != 3 || cmd.Text != "New Name" {
		t.Fatalf("fields lost: %+v", cmd)
	}
}
