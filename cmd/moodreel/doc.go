// Command moodreel reports the dominant facial emotion in a video.
//
// Subcommands:
//
//	analyze <video>   sample frames, classify them, and print the tally
//	serve             run the HTTP upload server
//	status            report dependencies, directories and classifier health
//	config init       write a sample configuration file
//	config validate   load and validate the configuration
//	test-notify       send a test ntfy notification
package main
