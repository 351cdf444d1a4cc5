package main

import (
	"strings"
	"testing"
)

func TestToolsCmd(t *testing.T) {
	t.Setenv("OTTO_HOME", t.TempDir())

	cmd := newToolsCmd()
	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("tools execute: %v", err)
	}

	output := out.String()
	for _, want := range []string{"TOOL", "RISK", "answer_call", "send_sms", "speak_text"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
	if !strings.Contains(output, "needs approval") {
		t.Errorf("expected at least one approval-gated tool, got: %s", output)
	}
}

func TestPolicyCmd(t *testing.T) {
	t.Setenv("OTTO_HOME", t.TempDir())

	t.Run("lists allow and deny sets", func(t *testing.T) {
		cmd := newPolicyCmd()
		var out strings.Builder
		cmd.SetOut(&out)
		cmd.SetArgs([]string{})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("policy execute: %v", err)
		}
		output := out.String()
		if !strings.Contains(output, "allowed:") || !strings.Contains(output, "denied:") {
			t.Errorf("expected both sections, got: %s", output)
		}
	})

	t.Run("check reports low risk as allowed", func(t *testing.T) {
		cmd := newPolicyCheckCmd()
		var out strings.Builder
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"wait"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("policy check execute: %v", err)
		}
		if !strings.Contains(out.String(), "allowed") {
			t.Errorf("unexpected output: %s", out.String())
		}
	})

	t.Run("check reports high risk as needing approval", func(t *testing.T) {
		cmd := newPolicyCheckCmd()
		var out strings.Builder
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"make_phone_call"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("policy check execute: %v", err)
		}
		if !strings.Contains(out.String(), "approval") {
			t.Errorf("unexpected output: %s", out.String())
		}
	})

	t.Run("check honors the approved flag", func(t *testing.T) {
		cmd := newPolicyCheckCmd()
		var out strings.Builder
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--approved", "make_phone_call"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("policy check execute: %v", err)
		}
		if !strings.Contains(out.String(), "allowed") {
			t.Errorf("unexpected output: %s", out.String())
		}
	})

	t.Run("check refuses unknown tools", func(t *testing.T) {
		cmd := newPolicyCheckCmd()
		var out strings.Builder
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"launch_rocket"})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("policy check execute: %v", err)
		}
		if !strings.Contains(out.String(), "refused") {
			t.Errorf("unexpected output: %s", out.String())
		}
	})
}
