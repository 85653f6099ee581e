package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rrapp/rentchat/internal/store"
	"github.com/rrapp/rentchat/internal/store/sqlite"
)

const dateLayout = "2006-01-02"

var listingCmd = &cobra.Command{
	Use:   "listing",
	Short: "Manage rental listings",
}

var listingCreateFlags struct {
	owner         string
	title         string
	description   string
	rent          int
	propertyType  string
	roomType      string
	availableFrom string
	availableTo   string
}

var listingCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Publish a listing for an existing user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := listingCreateFlags

		from, err := time.Parse(dateLayout, f.availableFrom)
		if err != nil {
			return fmt.Errorf("invalid --available-from: %w", err)
		}
		to, err := time.Parse(dateLayout, f.availableTo)
		if err != nil {
			return fmt.Errorf("invalid --available-to: %w", err)
		}
		if to.Before(from) {
			return fmt.Errorf("--available-to is before --available-from")
		}

		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer st.Close()

		owner, err := st.GetUserByUsername(cmd.Context(), f.owner)
		if err != nil {
			return err
		}

		listing := &store.Listing{
			UserID:        owner.ID,
			Title:         f.title,
			Description:   f.description,
			MonthlyRent:   f.rent,
			PropertyType:  store.PropertyType(f.propertyType),
			RoomType:      store.RoomType(f.roomType),
			AvailableFrom: from,
			AvailableTo:   to,
		}
		if err := st.CreateListing(cmd.Context(), listing); err != nil {
			return err
		}

		logger.Info().Int64("listing_id", listing.ID).Str("owner", owner.Username).Msg("listing created")
		fmt.Fprintln(cmd.OutOrStdout(), listing.ID)
		return nil
	},
}

var listingListLimit int

var listingListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the newest active listings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer st.Close()

		listings, err := st.ListActiveListings(cmd.Context(), listingListLimit)
		if err != nil {
			return err
		}
		printListings(cmd, listings)
		return nil
	},
}

var listingSaveCmd = &cobra.Command{
	Use:   "save <username> <listing-id>",
	Short: "Add a listing to a user's saved listings",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var listingID int64
		if _, err := fmt.Sscan(args[1], &listingID); err != nil {
			return fmt.Errorf("invalid listing id %q", args[1])
		}

		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer st.Close()

		user, err := st.GetUserByUsername(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if _, err := st.GetListing(cmd.Context(), listingID); err != nil {
			return err
		}
		return st.SaveListing(cmd.Context(), user.ID, listingID)
	},
}

var listingSavedCmd = &cobra.Command{
	Use:   "saved <username>",
	Short: "Show a user's saved listings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer st.Close()

		user, err := st.GetUserByUsername(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		listings, err := st.ListSavedListings(cmd.Context(), user.ID)
		if err != nil {
			return err
		}
		printListings(cmd, listings)
		return nil
	},
}

func printListings(cmd *cobra.Command, listings []*store.Listing) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tRENT\tPROPERTY\tROOM\tAVAILABLE")
	for _, l := range listings {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s..%s\n",
			l.ID, l.Title, l.MonthlyRent, l.PropertyType, l.RoomType,
			l.AvailableFrom.Format(dateLayout), l.AvailableTo.Format(dateLayout))
	}
	w.Flush()
}

func init() {
	flags := listingCreateCmd.Flags()
	flags.StringVar(&listingCreateFlags.owner, "owner", "", "username of the advertiser")
	flags.StringVar(&listingCreateFlags.title, "title", "", "listing title")
	flags.StringVar(&listingCreateFlags.description, "description", "", "listing description")
	flags.IntVar(&listingCreateFlags.rent, "rent", 0, "monthly rent")
	flags.StringVar(&listingCreateFlags.propertyType, "property-type", string(store.PropertyTypeApartment), "independent_house or apartment")
	flags.StringVar(&listingCreateFlags.roomType, "room-type", string(store.RoomTypePrivate), "private or shared")
	flags.StringVar(&listingCreateFlags.availableFrom, "available-from", "", "first available date (YYYY-MM-DD)")
	flags.StringVar(&listingCreateFlags.availableTo, "available-to", "", "last available date (YYYY-MM-DD)")
	for _, name := range []string{"owner", "title", "rent", "available-from", "available-to"} {
		_ = listingCreateCmd.MarkFlagRequired(name)
	}

	listingListCmd.Flags().IntVar(&listingListLimit, "limit", 20, "maximum listings to show")

	listingCmd.AddCommand(listingCreateCmd, listingListCmd, listingSaveCmd, listingSavedCmd)
}
