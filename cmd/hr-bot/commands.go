package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send one chat message to the assistant",
	Long: `Send one chat message to the assistant.

Examples:
  hr-bot chat "ما هي سياسة العمل عن بعد؟"
  hr-bot chat --employee 1001 "كم يوم باقي من رصيد اجازتي؟"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		employeeID, _ := cmd.Flags().GetString("employee")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/chat", map[string]string{
			"message":     args[0],
			"employee_id": employeeID,
		})
		if err != nil {
			return err
		}

		var result struct {
			Response string `json:"response"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Response)
		return nil
	},
}

func init() {
	chatCmd.Flags().String("employee", "", "employee ID to chat as")
}

// --- docs ---

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage indexed policy documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/admin/documents")
		if err != nil {
			return err
		}

		var listed struct {
			Documents []struct {
				DocumentID string `json:"document_id"`
				Filename   string `json:"filename"`
				Collection struct {
					CollectionID string `json:"collection_id"`
					ChunkCount   int    `json:"chunk_count"`
					Status       string `json:"status"`
				} `json:"collection"`
			} `json:"documents"`
			Active []string `json:"active"`
		}
		if err := decodeJSON(resp, &listed); err != nil {
			return err
		}

		if len(listed.Documents) == 0 {
			printWarning("No documents indexed")
			return nil
		}

		active := make(map[string]bool, len(listed.Active))
		for _, id := range listed.Active {
			active[id] = true
		}
		for _, doc := range listed.Documents {
			state := "inactive"
			if active[doc.Collection.CollectionID] {
				state = "active"
			}
			fmt.Printf("  %s  %s  (%s, %d chunks, %s)\n",
				colorize(colorBold, doc.DocumentID), doc.Filename,
				doc.Collection.CollectionID, doc.Collection.ChunkCount, state)
		}
		return nil
	},
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete an indexed document and its collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/api/admin/documents/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted document %s", args[0])
		return nil
	},
}

func init() {
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsDeleteCmd)
}

// --- tickets ---

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Manage vacation and support tickets",
}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tickets",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/admin/tickets")
		if err != nil {
			return err
		}

		var listed struct {
			VacationTickets []struct {
				TicketID    string `json:"ticket_id"`
				EmployeeID  string `json:"employee_id"`
				RequestType string `json:"request_type"`
				StartDate   string `json:"start_date"`
				EndDate     string `json:"end_date"`
				Status      string `json:"status"`
			} `json:"vacation_tickets"`
			SupportTickets []struct {
				TicketID   string `json:"ticket_id"`
				EmployeeID string `json:"employee_id"`
				Summary    string `json:"summary"`
				Status     string `json:"status"`
			} `json:"support_tickets"`
		}
		if err := decodeJSON(resp, &listed); err != nil {
			return err
		}

		if len(listed.VacationTickets) == 0 && len(listed.SupportTickets) == 0 {
			printWarning("No tickets")
			return nil
		}

		for _, t := range listed.VacationTickets {
			fmt.Printf("  %s  employee %s  %s  %s → %s  [%s]\n",
				colorize(colorBold, t.TicketID), t.EmployeeID, t.RequestType,
				t.StartDate, t.EndDate, t.Status)
		}
		for _, t := range listed.SupportTickets {
			fmt.Printf("  %s  employee %s  %s  [%s]\n",
				colorize(colorBold, t.TicketID), t.EmployeeID, t.Summary, t.Status)
		}
		return nil
	},
}

var ticketsResolveCmd = &cobra.Command{
	Use:   "resolve <ticket-id>",
	Short: "Approve or reject a vacation ticket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		manager, _ := cmd.Flags().GetString("manager")
		notes, _ := cmd.Flags().GetString("notes")

		status = strings.ToLower(status)
		if status != "approved" && status != "rejected" {
			return fmt.Errorf("--status must be approved or rejected")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/admin/tickets/"+args[0]+"/status", map[string]string{
			"status":     status,
			"manager_id": manager,
			"notes":      notes,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Ticket %s %s", args[0], status)
		return nil
	},
}

func init() {
	ticketsResolveCmd.Flags().String("status", "", "approved or rejected")
	ticketsResolveCmd.Flags().String("manager", "", "manager ID recorded on the ticket")
	ticketsResolveCmd.Flags().String("notes", "", "optional notes")
	ticketsResolveCmd.MarkFlagRequired("status")

	ticketsCmd.AddCommand(ticketsListCmd)
	ticketsCmd.AddCommand(ticketsResolveCmd)
}

// --- balance ---

var balanceCmd = &cobra.Command{
	Use:   "balance <employee-id>",
	Short: "Show an employee's vacation balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/employee/vacation-balance/"+args[0])
		if err != nil {
			return err
		}

		var account struct {
			Name             string  `json:"name"`
			Department       string  `json:"department"`
			AnnualBalance    float64 `json:"annual_balance"`
			UsedDays         float64 `json:"used_days"`
			RemainingBalance float64 `json:"remaining_balance"`
			LastUpdated      string  `json:"last_updated"`
		}
		if err := decodeJSON(resp, &account); err != nil {
			return err
		}

		printStatus("Employee", "%s (%s)", account.Name, account.Department)
		printStatus("Annual", "%.0f days", account.AnnualBalance)
		printStatus("Used", "%.0f days", account.UsedDays)
		printStatus("Remaining", "%.0f days", account.RemainingBalance)
		printStatus("Updated", "%s", account.LastUpdated)
		return nil
	},
}
