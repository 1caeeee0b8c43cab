package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pagejournal/internal/config"
)

// ConfigCommand returns the config command.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the effective configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print every setting and where it came from",
				Action: configShow,
			},
		},
	}
}

type settingInfo struct {
	Key    string `json:"key" yaml:"key" table:"KEY"`
	Value  string `json:"value" yaml:"value" table:"VALUE"`
	Source string `json:"source" yaml:"source" table:"SOURCE"`
}

func configShow(c *cli.Context) error {
	e := envFrom(c)
	settings := config.Flatten(e.cfg)
	rows := make([]settingInfo, 0, len(settings))
	for _, s := range settings {
		rows = append(rows, settingInfo{
			Key:    s.Key,
			Value:  fmt.Sprint(s.Value),
			Source: e.source.Origin(s.Key),
		})
	}
	return e.print(c, rows)
}
