package telegram

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/ewaproduct/ewabot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/quiz", commands.Command{Handler: noop, Description: "quiz", Aliases: []string{"Подобрать БАД - тест"}})
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "start"})

	cases := map[string]string{
		"/quiz":                "/quiz",
		"/quiz@ewa_bot":        "/quiz",
		"/start payload":       "/start",
		"Подобрать БАД - тест": "/quiz",
	}
	for in, want := range cases {
		key, _, ok := reg.LookupCommand(in)
		if !ok || key != want {
			t.Fatalf("LookupCommand(%q) = %q %v, want %q", in, key, ok, want)
		}
	}
	if _, _, ok := reg.LookupCommand("quiz"); ok {
		t.Fatal("plain command name without slash must not match")
	}
}

func TestRegistryRejectsInvalid(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "x"})
	reg.RegisterCommand("/nodesc", commands.Command{Handler: noop})
	reg.RegisterCommand("/ok", commands.Command{Handler: noop, Description: "first"})
	reg.RegisterCommand("/ok", commands.Command{Handler: noop, Description: "second"})
	if len(reg.Commands()) != 1 || reg.Commands()["/ok"].Description != "first" {
		t.Fatalf("commands = %v", reg.Commands())
	}
}

type fakeSetter struct {
	got []tele.Command
	err error
}

func (f *fakeSetter) SetCommands(opts ...any) error {
	for _, o := range opts {
		if cmds, ok := o.([]tele.Command); ok {
			f.got = cmds
		}
	}
	return f.err
}

func TestInitBotCommandsHidesAdminCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "start"})
	reg.RegisterCommand("/tree", commands.Command{Handler: noop, Description: "tree", AdminOnly: true})
	reg.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "debug", Hidden: true})

	fs := &fakeSetter{err: errors.New("offline")}
	InitBotCommands(fs, reg)
	if len(fs.got) != 1 || fs.got[0].Text != "start" {
		t.Fatalf("published = %+v", fs.got)
	}
}
