package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gyeh/billcheck/internal/hospital"
)

func newHospitalsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hospitals",
		Short: "Browse the hospital price directory and the NPI registry",
	}

	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List hospitals with published prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			hs := hospital.Default().Search(search)
			if hs == nil {
				hs = []hospital.Hospital{}
			}
			return printJSON(hs)
		},
	}
	list.Flags().StringVar(&search, "search", "", "Filter by name, city or address")

	var state string
	npi := &cobra.Command{
		Use:   "npi <organization name>",
		Short: "Search the NPPES registry for organizations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			providers, err := hospital.NewRegistry().SearchOrganizations(context.Background(), args[0], state)
			if err != nil {
				return fmt.Errorf("searching NPPES: %w", err)
			}
			if len(providers) == 0 {
				return fmt.Errorf("no organizations match %q", args[0])
			}
			return printJSON(providers)
		},
	}
	npi.Flags().StringVar(&state, "state", "", "Two-letter state filter")

	cmd.AddCommand(list, npi)
	return cmd
}
