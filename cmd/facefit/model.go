package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/facefit/internal/face"
)

var (
	modelDims       int
	modelResolution int
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect and generate face models",
}

var modelSynthCmd = &cobra.Command{
	Use:   "synth <output.json>",
	Short: "Write the synthetic face model to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := face.SyntheticModel(modelDims, modelResolution)
		if err != nil {
			return err
		}
		if err := face.SaveModel(args[0], model); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s: %d vertices, %d triangles, %d components\n",
			args[0], model.VertexCount(), len(model.Triangles()), model.Dimensions())
		return nil
	},
}

var modelInfoCmd = &cobra.Command{
	Use:   "info <model.json>",
	Short: "Describe a face model file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, err := face.LoadModel(args[0])
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Vertices:    %d\n", model.VertexCount())
		fmt.Fprintf(w, "Triangles:   %d\n", len(model.Triangles()))
		fmt.Fprintf(w, "Components:  %d\n", model.Dimensions())
		fmt.Fprintf(w, "Multipliers: %v\n", model.Multipliers(1))
		return nil
	},
}

func init() {
	modelSynthCmd.Flags().IntVar(&modelDims, "dims", 10, "Number of shape components")
	modelSynthCmd.Flags().IntVar(&modelResolution, "resolution", 24, "Latitude bands")
	modelCmd.AddCommand(modelSynthCmd, modelInfoCmd)
	rootCmd.AddCommand(modelCmd)
}
