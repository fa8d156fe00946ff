package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseRoles(t *testing.T) {
	specs, err := parseRoles(strings.NewReader(`
roles:
  - name: admin
    description: Full dashboard access
    permissions: [view_all_clients, assign_client, change_client_stage, change_client]
  - name: csm
    permissions:
      - change_client_stage
`))
	if err != nil {
		t.Fatalf("parseRoles: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(specs))
	}
	if specs[0].Name != "admin" || len(specs[0].Permissions) != 4 {
		t.Fatalf("unexpected admin spec %+v", specs[0])
	}
	if specs[1].Name != "csm" || specs[1].Permissions[0] != "change_client_stage" {
		t.Fatalf("unexpected csm spec %+v", specs[1])
	}
}

func TestParseRolesRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"unknown permission": "roles:\n  - name: csm\n    permissions: [delete_everything]\n",
		"duplicate role":     "roles:\n  - name: csm\n  - name: CSM\n",
		"missing name":       "roles:\n  - permissions: [change_client]\n",
		"unknown field":      "roles:\n  - name: csm\n    perms: [change_client]\n",
		"empty":              "roles: []\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseRoles(strings.NewReader(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRolesSyncDryRunReadsStdin(t *testing.T) {
	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(strings.NewReader("roles:\n  - name: csm\n    permissions: [change_client_stage]\n"))
	root.SetArgs([]string{"roles", "sync", "-f", "-", "--dry-run"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "csm: change_client_stage") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRolesPermissionsListsCodenames(t *testing.T) {
	root := RootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"roles", "permissions"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{"view_all_clients", "assign_client", "change_client_stage", "change_client"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("missing %s in %q", want, out.String())
		}
	}
}
