package domain

// StatLabel pairs a dashboard counter with its display title.
type StatLabel struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

// RoleConfig drives the per-role dashboard surface. Adding a role is a data
// change here, not a new branch in handler code.
type RoleConfig struct {
	Greeting     string      `json:"greeting"`
	StatLabels   []StatLabel `json:"statLabels"`
	QuickActions []string    `json:"quickActions"`
}

var roleConfigs = map[Role]RoleConfig{
	RoleDoctor: {
		Greeting: "Welcome back! Here's what's happening today.",
		StatLabels: []StatLabel{
			{Key: "totalAppointments", Title: "Total Appointments"},
			{Key: "completedConsultations", Title: "Completed Consultations"},
			{Key: "upcomingAppointments", Title: "Pending Reviews"},
			{Key: "activePatients", Title: "Active Patients"},
		},
		QuickActions: []string{"schedule-appointment", "start-video-call", "open-chat", "view-consultations"},
	},
	RolePatient: {
		Greeting: "Welcome back! Here's your care summary.",
		StatLabels: []StatLabel{
			{Key: "totalAppointments", Title: "Total Appointments"},
			{Key: "completedConsultations", Title: "Completed Consultations"},
			{Key: "upcomingAppointments", Title: "Upcoming Appointments"},
			{Key: "records", Title: "Medical Records"},
		},
		QuickActions: []string{"book-appointment", "join-call", "open-chat", "view-records"},
	},
}

// DashboardConfig returns the dashboard configuration for a role. Unknown
// roles fall back to the patient surface.
func DashboardConfig(role Role) RoleConfig {
	if cfg, ok := roleConfigs[role]; ok {
		return cfg
	}
	return roleConfigs[RolePatient]
}
