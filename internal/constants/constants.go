package constants

const USER_AGENT = "paydesk/1.0 (+https://github.com/Amund211/paydesk)"
