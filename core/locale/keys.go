package locale

// Message ids. Every user-facing string goes through one of these.
const (
	// Navigation and menus
	ButtonBack      = "ButtonBack"
	ButtonAssistant = "ButtonAssistant"
	ButtonProfile   = "ButtonProfile"
	MenuMainTitle   = "MenuMainTitle"
	MenuReady       = "MenuReady"
	MenuNextPrompt  = "MenuNextPrompt"

	// Delivery and generic errors
	DeliveryApology = "DeliveryApology"
	ErrorGeneric    = "ErrorGeneric"
	ErrorRateLimit  = "ErrorRateLimit"
	ErrorAdminOnly  = "ErrorAdminOnly"

	// Commands
	CommandStart = "CommandStart"
	CommandMenu  = "CommandMenu"
	CommandQuiz  = "CommandQuiz"
	CommandTree  = "CommandTree"
	TreeEmpty    = "TreeEmpty"

	// Quiz
	QuizTrigger        = "QuizTrigger"
	QuizWelcome        = "QuizWelcome"
	QuizGoalsPrompt    = "QuizGoalsPrompt"
	QuizTooManyGoals   = "QuizTooManyGoals"
	QuizInvalidGoals   = "QuizInvalidGoals"
	QuizChooseOption   = "QuizChooseOption"
	QuizUnavailable    = "QuizUnavailable"
	QuizRestart        = "QuizRestart"
	QuizResults        = "QuizResults"
	QuizResultsEmpty   = "QuizResultsEmpty"
	QuizBonusButton    = "QuizBonusButton"
	QuizFullButton     = "QuizFullButton"
	QuizBonus          = "QuizBonus"
	QuizBonusEmpty     = "QuizBonusEmpty"
	QuizFull           = "QuizFull"
	QuizFullBonusEmpty = "QuizFullBonusEmpty"

	// Assistant
	AssistantIntro       = "AssistantIntro"
	AssistantUnavailable = "AssistantUnavailable"

	// Profile
	ProfileExitButton    = "ProfileExitButton"
	ProfileConfirmButton = "ProfileConfirmButton"
	ProfileCancelButton  = "ProfileCancelButton"
	ProfileCard          = "ProfileCard"
	ProfileEmptyValue    = "ProfileEmptyValue"
	ProfileNotRegistered = "ProfileNotRegistered"
	ProfileExitConfirm   = "ProfileExitConfirm"
	ProfileLoggedOut     = "ProfileLoggedOut"

	// Onboarding survey; *Options hold one button label per line
	OnboardingStatus            = "OnboardingStatus"
	OnboardingStatusOptions     = "OnboardingStatusOptions"
	OnboardingExperience        = "OnboardingExperience"
	OnboardingExperienceOptions = "OnboardingExperienceOptions"
	OnboardingGoals             = "OnboardingGoals"
	OnboardingGoalsOptions      = "OnboardingGoalsOptions"
	OnboardingPriority          = "OnboardingPriority"
	OnboardingPriorityOptions   = "OnboardingPriorityOptions"
	OnboardingChooseOption      = "OnboardingChooseOption"
)

// AllKeys lists every message id; translation files must define each of them.
var AllKeys = []string{
	ButtonBack, ButtonAssistant, ButtonProfile, MenuMainTitle, MenuReady, MenuNextPrompt,
	DeliveryApology, ErrorGeneric, ErrorRateLimit, ErrorAdminOnly,
	CommandStart, CommandMenu, CommandQuiz, CommandTree, TreeEmpty,
	QuizTrigger, QuizWelcome, QuizGoalsPrompt, QuizTooManyGoals, QuizInvalidGoals,
	QuizChooseOption, QuizUnavailable, QuizRestart, QuizResults, QuizResultsEmpty,
	QuizBonusButton, QuizFullButton, QuizBonus, QuizBonusEmpty, QuizFull, QuizFullBonusEmpty,
	AssistantIntro, AssistantUnavailable,
	ProfileExitButton, ProfileConfirmButton, ProfileCancelButton, ProfileCard,
	ProfileEmptyValue, ProfileNotRegistered, ProfileExitConfirm, ProfileLoggedOut,
	OnboardingStatus, OnboardingStatusOptions, OnboardingExperience, OnboardingExperienceOptions,
	OnboardingGoals, OnboardingGoalsOptions, OnboardingPriority, OnboardingPriorityOptions,
	OnboardingChooseOption,
}
