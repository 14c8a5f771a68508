/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	dfv1 "github.com/numaproj/fastscaler/pkg/apis/fastscaler/v1alpha1"
	"github.com/numaproj/fastscaler/pkg/config"
	sharedutil "github.com/numaproj/fastscaler/pkg/shared/util"
	"github.com/numaproj/fastscaler/pkg/tier"
)

func NewClassifyCommand() *cobra.Command {
	var configFile string

	command := &cobra.Command{
		Use:   "classify AVG...",
		Short: "Print the tier of load values, use -- before negative values",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.LoadConfig(configFile, func(error) {})
			if err != nil {
				return err
			}
			ladder := conf.GetAutoscalerSpec().GetLadder()
			for _, arg := range args {
				avg, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return fmt.Errorf("invalid load value %q", arg)
				}
				matched := tier.Classify(ladder, avg)
				switch {
				case matched.Scale:
					cmd.Printf("%v\t%s\tnotify, scale to %d\n", avg, matched.Tier, matched.DesiredCount)
				case matched.Notify:
					cmd.Printf("%v\t%s\tnotify\n", avg, matched.Tier)
				default:
					cmd.Printf("%v\t%s\n", avg, matched.Tier)
				}
			}
			return nil
		},
	}
	command.Flags().StringVar(&configFile, "config", sharedutil.LookupEnvStringOr(dfv1.EnvConfigFile, ""), "Path of the configuration file, defaults to $FASTSCALER_CONFIG.")
	return command
}
