package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"text/template"

	"github.com/northvolt/go-pka/pka"
	"github.com/northvolt/go-pka/pka/pkareg"
	"github.com/peterbourgon/ff/v3/ffcli"
)

type infoConfig struct {
	rootConfig *rootConfig
	out        io.Writer
	err        io.Writer
	json       bool
}

func (c *infoConfig) Exec(ctx context.Context, _ []string) error {
	if c.rootConfig.verbose {
		fmt.Fprintf(c.err, "info\n")
	}

	ctx, cancel := c.rootConfig.withTimeout(ctx)
	defer cancel()

	d, _, closer, err := newPKA(ctx, c.rootConfig)
	if err != nil {
		return err
	}
	defer closer.Close()

	di := getDeviceInfo(d, c.rootConfig)
	if c.json {
		return writeJSON(c.out, di)
	} else {
		return writeText(c.out, di)
	}
}

const deviceInfoTemplate = `
Device:
    {{ .Name }} ({{ .Backend }} backend)

State:
    {{ .State }}

Clock:
    HSE is {{ onoff .Registers.RCCControl.HSEReady }}
    HSI is {{ onoff .Registers.RCCControl.HSIReady }}
    RNG kernel clock source {{ .Registers.RNGClockSelect.Source }}

RNG:
    RNG_CR {{ hex .Registers.RNGControl.Bits }}
    RNG_SR {{ hex .Registers.RNGStatus.Bits }}
    RNG is {{ onoff .Registers.RNGControl.Enabled }}

PKA:
    PKA_CR {{ hex .Registers.PKAControl.Bits }}
    PKA_SR {{ hex .Registers.PKAStatus.Bits }}
    PKA is {{ onoff .Registers.PKAStatus.InitOK }}
{{- if .Registers.PKAStatus.RAMError }}
    RAM error flag is set
{{- end }}
{{- if .Registers.PKAStatus.AddressError }}
    Address error flag is set
{{- end }}
{{- if .Registers.PKAStatus.OpError }}
    Operation error flag is set
{{- end }}

Done
`

func writeText(w io.Writer, di *deviceInfo) error {
	funcs := template.FuncMap{
		"hex": func(v uint32) string {
			return fmt.Sprintf("%#08x", v)
		},
		"onoff": func(b bool) string {
			if b {
				return "ready"
			} else {
				return "off"
			}
		},
	}
	t, err := template.New("info").Funcs(funcs).Parse(deviceInfoTemplate)
	if err != nil {
		return err
	}

	return t.Execute(w, di)
}

func writeJSON(w io.Writer, data any) error {
	j, err := json.MarshalIndent(data, "", " ")
	if err != nil {
		return err
	}
	_, err = w.Write(j)
	return err
}

func newInfoCmd(
	rootConfig *rootConfig, out io.Writer, err io.Writer,
) *ffcli.Command {
	cfg := infoConfig{
		rootConfig: rootConfig,
		out:        out,
		err:        err,
	}

	fs := flag.NewFlagSet("pka info", flag.ExitOnError)
	fs.BoolVar(&cfg.json, "json", false, "output in json mode")

	return addLongHelp(&ffcli.Command{
		Name:       "info",
		ShortUsage: "info",
		ShortHelp:  "Brings up the accelerator and shows the register state.",
		FlagSet:    fs,
		Options:    ffOptions(),
		Exec:       cfg.Exec,
	})
}

type deviceInfo struct {
	Name      string          `json:"name"`
	Backend   string          `json:"backend"`
	State     string          `json:"state"`
	Registers pkareg.Snapshot `json:"registers"`
}

func getDeviceInfo(d *pka.Dev, c *rootConfig) *deviceInfo {
	return &deviceInfo{
		Name:      d.String(),
		Backend:   c.backend,
		State:     d.State().String(),
		Registers: d.Registers(),
	}
}
