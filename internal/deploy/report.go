package deploy

import (
	"fmt"
	"io"
)

// WriteSummary prints the end-of-run counts and, when there were failures,
// every file with its error.
func WriteSummary(w io.Writer, res *Results) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Deployment Summary:")
	if res.Planned != nil {
		fmt.Fprintf(w, " Would create: %d\n", len(res.Planned[ActionWouldCreate]))
		fmt.Fprintf(w, " Would update: %d\n", len(res.Planned[ActionWouldUpdate]))
	}
	fmt.Fprintf(w, " Created: %d\n", len(res.Created))
	fmt.Fprintf(w, " Updated: %d\n", len(res.Updated))
	fmt.Fprintf(w, " Errors: %d\n", len(res.Errors))

	if res.HasErrors() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Errors:")
		for _, e := range res.Errors {
			fmt.Fprintf(w, " - %s: %s\n", e.File, e.Message)
		}
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Deployment completed successfully!")
}

func progressLine(file string, action Action, err error) string {
	if err != nil {
		return fmt.Sprintf("Error %s: %s", file, err.Error())
	}

	switch action {
	case ActionCreated:
		return "Created: " + file
	case ActionUpdated:
		return "Updated: " + file
	case ActionWouldCreate:
		return "Would create: " + file
	case ActionWouldUpdate:
		return "Would update: " + file
	default:
		return string(action) + ": " + file
	}
}
